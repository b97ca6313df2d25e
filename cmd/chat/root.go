package main

import (
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"groupchat/internal/pkg"
	"groupchat/internal/session"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type runtimeState struct {
	server      string
	sessionFile string
	interval    time.Duration
	noColor     bool
	verbose     bool
	out         io.Writer

	creds  session.Credentials
	client *session.Client
	log    *logrus.Logger
}

func newRootCommand(out io.Writer) *cobra.Command {
	rt := &runtimeState{out: out}

	root := &cobra.Command{
		Use:           "chat",
		Short:         "Terminal client for groupchat",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.sessionFile == "" {
				rt.sessionFile = session.DefaultCredentialsPath()
			}
			if !rt.noColor {
				rt.noColor = strings.EqualFold(os.Getenv("NO_COLOR"), "true") || os.Getenv("NO_COLOR") == "1"
			}
			level := "warn"
			if rt.verbose {
				level = "debug"
			}
			rt.log = pkg.NewLogger(level, "development")
			rt.log.SetOutput(os.Stderr)

			creds, err := session.LoadCredentials(rt.sessionFile)
			if err != nil {
				return err
			}
			// --server 优先；切换服务端时旧的 token 无效
			if rt.server != "" && rt.server != creds.Server {
				creds = session.Credentials{Server: rt.server}
			}
			if creds.Server == "" {
				creds.Server = "http://localhost:8080"
			}
			rt.creds = creds
			rt.client = session.NewClient(creds, func(c session.Credentials) {
				if err := session.SaveCredentials(rt.sessionFile, c); err != nil {
					rt.log.WithError(err).Warn("save refreshed session failed")
				}
			})
			return nil
		},
	}

	root.PersistentFlags().StringVar(&rt.server, "server", os.Getenv("GROUPCHAT_SERVER"), "API server base URL")
	root.PersistentFlags().StringVar(&rt.sessionFile, "session-file", "", "Where the login session is stored")
	root.PersistentFlags().DurationVar(&rt.interval, "interval", session.DefaultInterval, "Message polling interval")
	root.PersistentFlags().BoolVar(&rt.noColor, "no-color", false, "Disable coloured output")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newRegisterCommand(rt),
		newLoginCommand(rt),
		newLogoutCommand(rt),
		newGroupsCommand(rt),
		newCreateCommand(rt),
		newInviteCommand(rt),
		newSendCommand(rt),
		newOpenCommand(rt),
	)
	return root
}

// newSession 构造会话；未登录时返回错误
func (rt *runtimeState) newSession() (*session.Session, error) {
	if rt.creds.Username == "" || rt.creds.AccessToken == "" {
		return nil, errors.New("not logged in, run `chat login <username>` first")
	}
	view := session.NewTerminal(rt.out, rt.creds.Username, !rt.noColor)
	return session.New(rt.client, view, rt.creds.Username, rt.interval, rt.log), nil
}
