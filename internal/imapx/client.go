// Package imapx implements the mailbox session contract on top of the
// go-imap v2 client.
package imapx

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/fgken/mcp-server-imap/internal/mailbox"
)

// Config holds the already-validated connection parameters for one
// IMAP account.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// StartTLS selects opportunistic upgrade of a plaintext
	// connection instead of connecting over TLS directly.
	StartTLS bool
}

// Addr returns the host:port dial address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// AuthError indicates that the server rejected the credentials.
type AuthError struct {
	Username string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %s", e.Username, e.Message)
}

// Dialer opens authenticated sessions against one configured server.
type Dialer struct {
	cfg Config
}

// NewDialer creates a Dialer for the given connection parameters.
func NewDialer(cfg Config) *Dialer {
	return &Dialer{cfg: cfg}
}

// Dial connects, negotiates TLS per the configuration, and logs in.
// The returned session must be released with Logout.
func (d *Dialer) Dial(_ context.Context) (mailbox.Session, error) {
	addr := d.cfg.Addr()

	var client *imapclient.Client
	var err error

	if d.cfg.StartTLS {
		client, err = imapclient.DialStartTLS(addr, nil)
	} else {
		client, err = imapclient.DialTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(d.cfg.Username, d.cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &AuthError{
			Username: d.cfg.Username,
			Message:  err.Error(),
		}
	}

	return &session{client: client}, nil
}

// session adapts one logged-in go-imap client connection to the
// mailbox.Session contract.
type session struct {
	client *imapclient.Client
}

func (s *session) Folders() ([]string, error) {
	listCmd := s.client.List("", "*", nil)
	mailboxes, err := listCmd.Collect()
	if err != nil {
		return nil, fmt.Errorf("listing mailboxes: %w", err)
	}

	names := make([]string, 0, len(mailboxes))
	for _, m := range mailboxes {
		names = append(names, m.Mailbox)
	}
	return names, nil
}

func (s *session) Select(folder string) error {
	if _, err := s.client.Select(folder, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %q: %w", folder, err)
	}
	return nil
}

func (s *session) Search(tokens []string) ([]uint32, error) {
	criteria, err := compileCriteria(tokens)
	if err != nil {
		return nil, fmt.Errorf("encoding search program: %w", err)
	}

	data, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}

	imapUIDs := data.AllUIDs()
	uids := make([]uint32, 0, len(imapUIDs))
	for _, uid := range imapUIDs {
		uids = append(uids, uint32(uid))
	}
	return uids, nil
}

func (s *session) FetchRaw(uids []uint32) (map[uint32][]byte, error) {
	ids := make([]imap.UID, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, imap.UID(uid))
	}
	uidSet := imap.UIDSetNum(ids...)

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := s.client.Fetch(uidSet, &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	out := make(map[uint32][]byte, len(uids))
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		if raw := buf.FindBodySection(bodySection); raw != nil {
			out[uint32(buf.UID)] = raw
		}
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}
	return out, nil
}

func (s *session) Logout() error {
	return s.client.Logout().Wait()
}
