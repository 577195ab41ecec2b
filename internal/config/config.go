// Package config loads the server options from command-line flags, an
// optional JSON config file and environment variables.
//
// PRECEDENCE (lowest to highest):
//
//	flag defaults < config file < flags given on the command line < environment
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/sakif/deskkit/internal/auth"
)

// Options holds the server configuration.
type Options struct {
	// Port is the TCP port the HTTP server listens on.
	Port int `json:"port"`

	// DBPath is the SQLite database file. ":memory:" keeps everything in memory.
	DBPath string `json:"db_path"`

	// TemplateDir holds base.html and board.html.
	TemplateDir string `json:"template_dir"`

	// JWTSecret signs session tokens. Empty means a random secret per process.
	JWTSecret string `json:"jwt_secret"`

	// PasswordScheme is the digest used for new passwords: "bcrypt" or "legacy".
	PasswordScheme string `json:"password_scheme"`

	// BcryptCost is the bcrypt work factor.
	BcryptCost int `json:"bcrypt_cost"`

	// SecureCookie marks the token cookie Secure (HTTPS deployments).
	SecureCookie bool `json:"secure_cookie"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level"`

	// Config is the path to the JSON config file.
	Config string `json:"-"`
}

// Load parses args (without the program name) and the environment read
// through getenv. A config file that does not exist is skipped; one that
// exists but cannot be parsed is an error.
func Load(args []string, getenv func(string) string) (*Options, error) {
	opts := &Options{}

	fs := flag.NewFlagSet("deskkit", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.IntVar(&opts.Port, "port", 8080, "HTTP listen port")
	fs.StringVar(&opts.DBPath, "db", "data/deskkit.db", "SQLite database path")
	fs.StringVar(&opts.TemplateDir, "templates", "web/templates", "HTML template directory")
	fs.StringVar(&opts.JWTSecret, "jwt-secret", "", "JWT signing secret")
	fs.StringVar(&opts.PasswordScheme, "password-scheme", string(auth.SchemeBcrypt), "password digest for new passwords (bcrypt|legacy)")
	fs.IntVar(&opts.BcryptCost, "bcrypt-cost", auth.DefaultBcryptCost, "bcrypt cost")
	fs.BoolVar(&opts.SecureCookie, "secure-cookie", false, "mark the token cookie Secure")
	fs.StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	fs.StringVar(&opts.Config, "config", "", "path to JSON config file")
	fs.StringVar(&opts.Config, "c", "", "path to JSON config file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: parsing flags: %w", err)
	}

	if path := getenv("CONFIG"); path != "" {
		opts.Config = path
	}

	if opts.Config != "" {
		explicit := explicitFlags(fs)
		if err := opts.loadFile(opts.Config); err != nil {
			return nil, err
		}
		// flags given explicitly still beat the file
		for name, value := range explicit {
			if err := fs.Set(name, value); err != nil {
				return nil, fmt.Errorf("config: reapplying -%s: %w", name, err)
			}
		}
	}

	if err := opts.applyEnv(getenv); err != nil {
		return nil, err
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return opts, nil
}

func (o *Options) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	configPath := o.Config
	if err := json.Unmarshal(data, o); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	o.Config = configPath
	return nil
}

// explicitFlags records the flags given on the command line with their values.
func explicitFlags(fs *flag.FlagSet) map[string]string {
	set := make(map[string]string)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = f.Value.String()
	})
	return set
}

func (o *Options) applyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid PORT %q: %w", v, err)
		}
		o.Port = port
	}
	if v := getenv("DB_PATH"); v != "" {
		o.DBPath = v
	}
	if v := getenv("TEMPLATE_DIR"); v != "" {
		o.TemplateDir = v
	}
	if v := getenv("JWT_SECRET"); v != "" {
		o.JWTSecret = v
	}
	if v := getenv("PASSWORD_SCHEME"); v != "" {
		o.PasswordScheme = v
	}
	if v := getenv("BCRYPT_COST"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid BCRYPT_COST %q: %w", v, err)
		}
		o.BcryptCost = cost
	}
	if v := getenv("SECURE_COOKIE"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid SECURE_COOKIE %q: %w", v, err)
		}
		o.SecureCookie = secure
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		o.LogLevel = v
	}
	return nil
}

// Validate checks the option values.
func (o *Options) Validate() error {
	if o.Port < 1 || o.Port > 65535 {
		return fmt.Errorf("config: port %d out of range 1-65535", o.Port)
	}
	if o.DBPath == "" {
		return errors.New("config: database path is empty")
	}
	if _, err := auth.ParseScheme(o.PasswordScheme); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := auth.NewBcryptDigester(o.BcryptCost); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := o.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (o *Options) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(o.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: invalid log level %q", o.LogLevel)
	}
	return level, nil
}
