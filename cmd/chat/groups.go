package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"groupchat/internal/model"
	"groupchat/internal/session"

	"github.com/spf13/cobra"
)

func newGroupsCommand(rt *runtimeState) *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List the groups you belong to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := rt.newSession()
			if err != nil {
				return err
			}
			return s.LoadGroups(cmd.Context())
		},
	}
}

func newCreateCommand(rt *runtimeState) *cobra.Command {
	var privacy, members string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a group; you become its creator",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rt.newSession()
			if err != nil {
				return err
			}
			res, err := s.Create(cmd.Context(), session.CreateRequest{
				Name:    strings.Join(args, " "),
				Privacy: model.Privacy(privacy),
				Members: members,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(rt.out, "created %s (%s)\n", res.Group.Name, res.Group.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&privacy, "privacy", string(model.PrivacyPrivate), "public or private")
	cmd.Flags().StringVarP(&members, "members", "m", "", "Comma separated usernames to add")
	return cmd
}

func newInviteCommand(rt *runtimeState) *cobra.Command {
	return &cobra.Command{
		Use:   "invite <group-id> <username>",
		Short: "Add a registered user to a group you created",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rt.newSession()
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Enter(cmd.Context(), args[0]); err != nil {
				return err
			}
			return s.Invite(cmd.Context(), args[1])
		},
	}
}

func newSendCommand(rt *runtimeState) *cobra.Command {
	return &cobra.Command{
		Use:   "send <group-id> <text...>",
		Short: "Send one message to a group",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := rt.newSession(); err != nil {
				return err
			}
			text := strings.TrimSpace(strings.Join(args[1:], " "))
			if text == "" {
				return nil
			}
			_, err := rt.client.SendMessage(cmd.Context(), args[0], text)
			return err
		},
	}
}

// newOpenCommand 进入群组并持续轮询；标准输入的每一行作为消息发送
func newOpenCommand(rt *runtimeState) *cobra.Command {
	return &cobra.Command{
		Use:   "open <group-id>",
		Short: "Open a group and chat interactively",
		Long: `Open a group, print its history and poll for new messages.

Lines typed on stdin are sent as messages. Commands:
  /invite <username>   add a member (creator only)
  /open <group-id>     switch to another group
  /groups              list your groups
  /quit                leave`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rt.newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := s.Enter(ctx, args[0]); err != nil {
				return err
			}

			lines := make(chan string)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					select {
					case lines <- scanner.Text():
					case <-ctx.Done():
						return
					}
				}
			}()

			for {
				select {
				case <-ctx.Done():
					return nil
				case line, ok := <-lines:
					if !ok {
						return nil
					}
					if quit := handleLine(ctx, s, line); quit {
						return nil
					}
				}
			}
		},
	}
}

// handleLine 处理一行输入，返回 true 表示退出。错误已经通过 Alert 展示
func handleLine(ctx context.Context, s *session.Session, line string) bool {
	line = strings.TrimSpace(line)
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/invite":
		_ = s.Invite(ctx, arg)
	case "/open":
		_ = s.Enter(ctx, arg)
	case "/groups":
		_ = s.LoadGroups(ctx)
	default:
		_ = s.Send(ctx, line)
	}
	return false
}
