package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/taskbuddy/internal/api"
	"github.com/nhle/taskbuddy/internal/credential"
	"github.com/nhle/taskbuddy/internal/model"
	"github.com/nhle/taskbuddy/internal/reminder"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Serve the HTTP API",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(os.Stderr)
		if err != nil {
			return err
		}
		defer e.Close()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			e.cfg.Server.ListenAddr = addr
		}

		vault, err := credential.Open(model.ConfigDir())
		if err != nil {
			return err
		}
		n, err := e.notifier(vault)
		if err != nil {
			return err
		}

		svc, files, err := e.taskService(n)
		if err != nil {
			return err
		}
		defer svc.Wait()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if n != nil {
			sched := reminder.New(e.store, n, e.cfg.Reminder, e.logger)
			sched.Start()
			defer sched.Stop()
		}

		srv := api.NewServer(svc, e.store, files, e.logger)
		srv.RequireSignInSecret(e.cfg.Server.SignInSecret)
		timeout := time.Duration(e.cfg.Server.ShutdownTimeoutSec) * time.Second
		return srv.Run(ctx, e.cfg.Server.ListenAddr, timeout)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.listen_addr)")
	rootCmd.AddCommand(serveCmd)
}
