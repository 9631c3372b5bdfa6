package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/taskbuddy/internal/app"
	"github.com/nhle/taskbuddy/internal/credential"
	"github.com/nhle/taskbuddy/internal/model"
	"github.com/nhle/taskbuddy/internal/reminder"
	"github.com/nhle/taskbuddy/internal/store"
)

var tuiCmd = &cobra.Command{
	Use:     "tui",
	Aliases: []string{"board", "dash"},
	Short:   "Open the terminal dashboard",
	GroupID: "core",
	RunE: func(cmd *cobra.Command, args []string) error {
		logFile, err := openLogFile()
		if err != nil {
			return err
		}
		defer logFile.Close()

		// The screen belongs to the dashboard; logs go to a file.
		e, err := openEnv(logFile)
		if err != nil {
			return err
		}
		defer e.Close()

		vault, err := credential.Open(model.ConfigDir())
		if err != nil {
			return err
		}
		uid, err := currentUser(cmd, e, vault)
		if err != nil {
			return err
		}
		profile, err := e.store.GetProfile(cmd.Context(), uid)
		if err != nil {
			return fmt.Errorf("loading profile: %w", err)
		}

		n, err := e.notifier(vault)
		if err != nil {
			return err
		}
		svc, _, err := e.taskService(n)
		if err != nil {
			return err
		}
		defer svc.Wait()

		opts := app.Options{
			UserID:      uid,
			DefaultView: profile.Preferences.DefaultView,
			Theme:       profile.Preferences.Theme,
			Logger:      e.logger,
		}
		if n != nil {
			opts.Scheduler = reminder.New(e.store, n, e.cfg.Reminder, e.logger)
		}

		p := tea.NewProgram(app.New(svc, opts), tea.WithAltScreen())
		_, err = p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

// currentUser resolves the signed-in user from the keyring session.
func currentUser(cmd *cobra.Command, e *env, vault *credential.Vault) (string, error) {
	sess, err := vault.LoadSession()
	if errors.Is(err, credential.ErrNotSignedIn) {
		return "", fmt.Errorf("not signed in; run taskbuddy login --uid <id>")
	}
	if err != nil {
		return "", err
	}
	if _, err := e.store.GetSession(cmd.Context(), sess.Token); err != nil {
		if store.IsNotFound(err) {
			return "", fmt.Errorf("session expired; run taskbuddy login again")
		}
		return "", err
	}
	return sess.UserID, nil
}

func openLogFile() (io.WriteCloser, error) {
	dir := model.ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "taskbuddy.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}
