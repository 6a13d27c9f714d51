package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"coyote/cmd/internal/session"
)

// Run is the CLI entrypoint used by cmd/coyote.
// It returns an error instead of calling os.Exit to keep defers effective and lint clean.
func Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return Main(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

type globalFlags struct {
	envFile    string
	apiURL     string
	logLevel   string
	logFormat  string
	tokenStore string
	tokenFile  string
}

// Main runs one command line against explicit streams.
// Global flags override the environment, which overrides the .env file.
func Main(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	var gf globalFlags
	fs := newFlagSet("coyote")
	fs.StringVar(&gf.envFile, "env-file", "", "dotenv file to load (default .env)")
	fs.StringVar(&gf.apiURL, "api", "", "backend base URL including /api")
	fs.StringVar(&gf.logLevel, "log-level", "", "debug|info|warn|error")
	fs.StringVar(&gf.logFormat, "log-format", "", "json|pretty")
	fs.StringVar(&gf.tokenStore, "token-store", "", "file|memory|postgres")
	fs.StringVar(&gf.tokenFile, "token-file", "", "token file for the file store")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			_, _ = io.WriteString(stdout, Usage())
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: missing command", ErrUsage)
	}

	if _, err := LoadDotEnv(gf.envFile); err != nil {
		return err
	}
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	if cfg, err = gf.apply(cfg); err != nil {
		return err
	}

	log := NewLogger(cfg.LogLevel, cfg.LogFormat, stderr)
	slog.SetDefault(log)

	if err := ValidateSecurityConfig(cfg); err != nil {
		return err
	}

	a, err := New(ctx, cfg, log, stdout, stdin)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return a.Execute(ctx, fs.Args())
}

func (gf globalFlags) apply(cfg Config) (Config, error) {
	if gf.apiURL != "" {
		cfg.API.BaseURL = gf.apiURL
	}
	if gf.logLevel != "" {
		cfg.LogLevel = gf.logLevel
	}
	if gf.logFormat != "" {
		cfg.LogFormat = gf.logFormat
	}
	if gf.tokenStore != "" {
		b, err := session.ParseBackend(gf.tokenStore)
		if err != nil {
			return Config{}, err
		}
		cfg.Tokens.Backend = b
	}
	if gf.tokenFile != "" {
		cfg.Tokens.FilePath = gf.tokenFile
	}
	return cfg, cfg.Validate()
}
