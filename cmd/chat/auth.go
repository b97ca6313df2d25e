package main

import (
	"fmt"

	"groupchat/internal/session"

	"github.com/spf13/cobra"
)

func newRegisterCommand(rt *runtimeState) *cobra.Command {
	var password, email string
	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.client.Register(cmd.Context(), args[0], password, email); err != nil {
				return err
			}
			fmt.Fprintf(rt.out, "registered %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password")
	cmd.Flags().StringVar(&email, "email", "", "Email for invite notifications")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginCommand(rt *runtimeState) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and store the session locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := rt.client.Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			if err := session.SaveCredentials(rt.sessionFile, creds); err != nil {
				return err
			}
			fmt.Fprintf(rt.out, "logged in as %s\n", creds.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCommand(rt *runtimeState) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.creds.AccessToken != "" {
				if err := rt.client.Logout(cmd.Context()); err != nil {
					rt.log.WithError(err).Warn("server logout failed")
				}
			}
			if err := session.ClearCredentials(rt.sessionFile); err != nil {
				return err
			}
			fmt.Fprintln(rt.out, "logged out")
			return nil
		},
	}
}
