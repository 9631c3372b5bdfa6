package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/taskbuddy/internal/model"
)

// IMAPNotifier appends notifications to a mailbox over IMAP, so they
// show up in the user's mail client without an SMTP relay.
type IMAPNotifier struct {
	cfg      model.NotifyConfig
	password string
}

// NewIMAPNotifier creates a notifier for cfg; password comes from the keyring.
func NewIMAPNotifier(cfg model.NotifyConfig, password string) *IMAPNotifier {
	return &IMAPNotifier{cfg: cfg, password: password}
}

// connect establishes a connection to the IMAP server and authenticates.
// The caller is responsible for logging out.
func (n *IMAPNotifier) connect() (*imapclient.Client, error) {
	addr := net.JoinHostPort(n.cfg.Host, n.cfg.Port)

	var client *imapclient.Client
	var err error

	if n.cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(n.cfg.Username, n.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("authenticating %s: %w", n.cfg.Username, err)
	}

	return client, nil
}

// Notify composes the message and appends it to the configured mailbox,
// creating the mailbox on first use.
func (n *IMAPNotifier) Notify(ctx context.Context, note Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := Compose(note, n.cfg.From)
	if err != nil {
		return err
	}

	client, err := n.connect()
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	// Most servers answer ALREADYEXISTS after the first run.
	if err := client.Create(n.cfg.Mailbox, nil).Wait(); err != nil {
		slog.Debug("creating notification mailbox", "mailbox", n.cfg.Mailbox, "err", err)
	}

	cmd := client.Append(n.cfg.Mailbox, int64(len(msg)), &imap.AppendOptions{
		Time: note.At,
	})
	if _, err := cmd.Write(msg); err != nil {
		_ = cmd.Close()
		return fmt.Errorf("writing message to %s: %w", n.cfg.Mailbox, err)
	}
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("closing append to %s: %w", n.cfg.Mailbox, err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("appending to %s: %w", n.cfg.Mailbox, err)
	}
	return nil
}
