// The mcp-server-imap command serves IMAP mailbox search and retrieval
// tools to MCP clients over stdio.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/fgken/mcp-server-imap/internal/config"
	"github.com/fgken/mcp-server-imap/internal/credential"
	"github.com/fgken/mcp-server-imap/internal/imapx"
	"github.com/fgken/mcp-server-imap/internal/mailbox"
	"github.com/fgken/mcp-server-imap/internal/server"
	"github.com/fgken/mcp-server-imap/internal/store"
)

const version = "0.1.0"

var (
	flagConfig   = pflag.String("config", config.DefaultPath(), "path to the YAML config file")
	flagServer   = pflag.String("server", "", "IMAP server hostname")
	flagPort     = pflag.Int("port", 0, "IMAP server port (default 993, or 143 with --use-starttls)")
	flagUser     = pflag.String("user", "", "IMAP account user")
	flagPassword = pflag.String("password", "", "IMAP account password (prefer the keyring)")
	flagStartTLS = pflag.Bool("use-starttls", false, "connect in plaintext and upgrade via STARTTLS")
	flagCache    = pflag.String("cache", "", "path to the local body cache database")

	flagStorePassword  = pflag.Bool("store-password", false, "store --password in the system keyring and exit")
	flagForgetPassword = pflag.Bool("forget-password", false, "remove the stored password from the keyring and exit")
)

// resolveConfig merges the config file, environment and flags, in
// increasing order of precedence. The password additionally falls
// back to the system keyring.
func resolveConfig() (*config.Config, error) {
	cfg, err := config.Load(*flagConfig)
	if err != nil {
		return nil, err
	}

	if user := os.Getenv("IMAP_USER"); user != "" {
		cfg.Auth.User = user
	}
	if password := os.Getenv("IMAP_PASSWORD"); password != "" {
		cfg.Auth.Password = password
	}

	if *flagServer != "" {
		cfg.Server.Host = *flagServer
	}
	if *flagPort != 0 {
		cfg.Server.Port = *flagPort
	}
	if pflag.CommandLine.Changed("use-starttls") {
		cfg.Server.StartTLS = *flagStartTLS
	}
	if *flagUser != "" {
		cfg.Auth.User = *flagUser
	}
	if *flagPassword != "" {
		cfg.Auth.Password = *flagPassword
	}
	if *flagCache != "" {
		cfg.Cache.Path = *flagCache
	}

	cfg.ApplyDefaults()

	if cfg.Auth.Password == "" && cfg.Auth.User != "" {
		password, err := credential.GetPassword(cfg.Auth.User)
		if err != nil {
			log.Printf("no password in keyring for %q: %v", cfg.Auth.User, err)
		} else {
			cfg.Auth.Password = password
		}
	}

	return cfg, nil
}

func run() error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	if *flagStorePassword {
		if cfg.Auth.User == "" || *flagPassword == "" {
			return fmt.Errorf("--store-password requires --user and --password")
		}
		return credential.SetPassword(cfg.Auth.User, *flagPassword)
	}
	if *flagForgetPassword {
		if cfg.Auth.User == "" {
			return fmt.Errorf("--forget-password requires --user")
		}
		return credential.DeletePassword(cfg.Auth.User)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	var cache *store.BodyCache
	if cfg.Cache.Path != "" {
		cache, err = store.Open(cfg.Cache.Path)
		if err != nil {
			return fmt.Errorf("opening body cache: %w", err)
		}
		defer cache.Close()
	}

	dialer := imapx.NewDialer(imapx.Config{
		Host:     cfg.Server.Host,
		Port:     cfg.Server.Port,
		Username: cfg.Auth.User,
		Password: cfg.Auth.Password,
		StartTLS: cfg.Server.StartTLS,
	})

	svc := mailbox.New(dialer, cache)

	log.Printf("serving IMAP tools for %s@%s", cfg.Auth.User, cfg.Server.Host)
	return server.ServeStdio(server.New(svc, version))
}

func main() {
	pflag.Parse()
	// MCP owns stdout; all diagnostics go to stderr.
	log.SetOutput(os.Stderr)

	if err := run(); err != nil {
		log.Fatalf("mcp-server-imap: %v", err)
	}
}
