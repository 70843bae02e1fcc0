package config

import (
	"flag"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"

	"shelfdb/logging"
)

type Config struct {
	Port     int
	User     string
	Password string
	DataFile string // JSON catalog loaded at startup; empty = none
	Seed     bool   // install the sample catalog when no data file is given
	LogLevel string
}

// Parse reads the process flags, falling back to SHELFDB_* environment
// variables for anything not given on the command line. It exits on
// invalid flags like the flag package does.
func Parse() *Config {
	cfg, err := ParseArgs(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	return cfg
}

// ParseArgs parses args into a Config.
func ParseArgs(args []string) (*Config, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("shelfdb", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", envInt("SHELFDB_PORT", 5433), "listen port")
	fs.StringVar(&cfg.User, "user", envStr("SHELFDB_USER", "admin"), "auth username")
	fs.StringVar(&cfg.Password, "password", envStr("SHELFDB_PASSWORD", ""), "auth password")
	fs.StringVar(&cfg.DataFile, "data", envStr("SHELFDB_DATA", ""), "JSON catalog file to load at startup")
	fs.BoolVar(&cfg.Seed, "seed", envBool("SHELFDB_SEED", true), "install the sample catalog when -data is not set")
	fs.StringVar(&cfg.LogLevel, "log-level", envStr("SHELFDB_LOG_LEVEL", "info"), "log level (debug logs every command with timings)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.Newf("port %d out of range", c.Port)
	}
	if c.User == "" {
		return errors.New("user must not be empty")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.DataFile != "" {
		if _, err := os.Stat(c.DataFile); err != nil {
			return errors.Wrap(err, "data file")
		}
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
