package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/taskbuddy/internal/credential"
	"github.com/nhle/taskbuddy/internal/model"
)

var loginCmd = &cobra.Command{
	Use:     "login",
	Short:   "Sign in and keep the session in the system keyring",
	GroupID: "session",
	RunE: func(cmd *cobra.Command, args []string) error {
		uid, _ := cmd.Flags().GetString("uid")
		imapPassword, _ := cmd.Flags().GetString("imap-password")
		if uid == "" && imapPassword == "" {
			return fmt.Errorf("--uid is required")
		}

		vault, err := credential.Open(model.ConfigDir())
		if err != nil {
			return err
		}
		if imapPassword != "" {
			if err := vault.Set(credential.KeyIMAPPassword, imapPassword); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "IMAP password saved")
		}
		if uid == "" {
			return nil
		}

		e, err := openEnv(os.Stderr)
		if err != nil {
			return err
		}
		defer e.Close()

		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		profile, err := e.store.UpsertProfile(cmd.Context(), model.UserProfile{
			UID:         uid,
			DisplayName: name,
			Email:       email,
		})
		if err != nil {
			return err
		}

		// Replace any previous session.
		if old, err := vault.LoadSession(); err == nil {
			_ = e.store.DeleteSession(cmd.Context(), old.Token)
		}
		sess, err := e.store.CreateSession(cmd.Context(), profile.UID)
		if err != nil {
			return err
		}
		if err := vault.SaveSession(sess); err != nil {
			return err
		}

		e.logger.Info("signed in", "uid", profile.UID)
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", displayName(profile))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	Short:   "Sign out and forget the stored session",
	GroupID: "session",
	RunE: func(cmd *cobra.Command, args []string) error {
		vault, err := credential.Open(model.ConfigDir())
		if err != nil {
			return err
		}
		sess, err := vault.LoadSession()
		if err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
			return nil
		}

		e, err := openEnv(os.Stderr)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.store.DeleteSession(cmd.Context(), sess.Token); err != nil {
			return err
		}
		if err := vault.ClearSession(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
		return nil
	},
}

func init() {
	loginCmd.Flags().String("uid", "", "user id verified by your identity provider")
	loginCmd.Flags().String("name", "", "display name")
	loginCmd.Flags().String("email", "", "email address for notifications")
	loginCmd.Flags().String("imap-password", "", "store the IMAP password used for notifications")

	rootCmd.AddCommand(loginCmd, logoutCmd)
}

func displayName(p model.UserProfile) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.UID
}
