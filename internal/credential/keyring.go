// Package credential stores IMAP account passwords in the system
// keyring so they do not have to live in the config file.
package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "mcp-server-imap"

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mcp-server-imap/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mcp-server-imap-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// passwordKey derives the keyring entry name for an account.
func passwordKey(user string) string {
	return "imap-" + user
}

// GetPassword retrieves the stored password for the given account.
func GetPassword(user string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(passwordKey(user))
	if err != nil {
		return "", fmt.Errorf("getting password for %q: %w", user, err)
	}

	return string(item.Data), nil
}

// SetPassword stores the password for the given account.
func SetPassword(user, password string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  passwordKey(user),
		Data: []byte(password),
	})
	if err != nil {
		return fmt.Errorf("storing password for %q: %w", user, err)
	}

	return nil
}

// DeletePassword removes the stored password for the given account.
func DeletePassword(user string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(passwordKey(user))
	if err != nil {
		return fmt.Errorf("deleting password for %q: %w", user, err)
	}

	return nil
}
