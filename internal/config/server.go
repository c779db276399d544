package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Default server configuration values
const (
	DefaultAddr              = ":8082"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultAllowedOrigins    = "*"
	DefaultMaxReceivers      = 5
	DefaultMaxMessageBytes   = 64 * 1024
	DefaultMessagesPerSecond = 50
	DefaultMessageBurst      = 100
	DefaultSendBuffer        = 256
)

// Server holds the relay's runtime configuration
type Server struct {
	Addr      string
	LogLevel  string
	LogFormat string

	// AllowedOrigins is matched against the Origin header on /ws and used
	// for CORS on the HTTP endpoints. "*" allows any origin.
	AllowedOrigins []string

	MaxReceivers      int
	MaxMessageBytes   int64
	MessagesPerSecond float64
	MessageBurst      int
	SendBuffer        int
}

// ServerOptions carries CLI flag overrides; zero values fall through to the
// environment and then to the defaults.
type ServerOptions struct {
	Addr              string
	LogLevel          string
	LogFormat         string
	AllowedOrigins    string
	MaxReceivers      int
	MaxMessageBytes   int64
	MessagesPerSecond float64
	MessageBurst      int
}

// LoadServer reads configuration with the following priority:
// 1. CLI flags (passed via ServerOptions) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func LoadServer(opts ServerOptions) (*Server, error) {
	cfg := &Server{
		Addr:      pick(opts.Addr, "RELAY_ADDR", DefaultAddr),
		LogLevel:  pick(opts.LogLevel, "LOG_LEVEL", DefaultLogLevel),
		LogFormat: pick(opts.LogFormat, "LOG_FORMAT", DefaultLogFormat),
		AllowedOrigins: splitCSV(
			pick(opts.AllowedOrigins, "ALLOWED_ORIGINS", DefaultAllowedOrigins),
		),
		SendBuffer: DefaultSendBuffer,
	}

	var err error
	if cfg.MaxReceivers, err = pickInt(opts.MaxReceivers, "MAX_RECEIVERS", DefaultMaxReceivers); err != nil {
		return nil, err
	}
	maxBytes, err := pickInt(int(opts.MaxMessageBytes), "MAX_MESSAGE_BYTES", DefaultMaxMessageBytes)
	if err != nil {
		return nil, err
	}
	cfg.MaxMessageBytes = int64(maxBytes)
	if cfg.MessagesPerSecond, err = pickFloat(opts.MessagesPerSecond, "MESSAGES_PER_SECOND", DefaultMessagesPerSecond); err != nil {
		return nil, err
	}
	if cfg.MessageBurst, err = pickInt(opts.MessageBurst, "MESSAGE_BURST", DefaultMessageBurst); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the relay cannot run with.
func (c *Server) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("config: listen address is empty")
	case c.MaxReceivers <= 0:
		return fmt.Errorf("config: max receivers must be positive, got %d", c.MaxReceivers)
	case c.MaxMessageBytes <= 0:
		return fmt.Errorf("config: max message bytes must be positive, got %d", c.MaxMessageBytes)
	case c.MessagesPerSecond <= 0:
		return fmt.Errorf("config: messages per second must be positive, got %v", c.MessagesPerSecond)
	case c.MessageBurst <= 0:
		return fmt.Errorf("config: message burst must be positive, got %d", c.MessageBurst)
	case len(c.AllowedOrigins) == 0:
		return fmt.Errorf("config: no allowed origins")
	}
	return nil
}

// AllowAnyOrigin reports whether the wildcard origin is configured.
func (c *Server) AllowAnyOrigin() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

// pick returns the flag value, else the env var, else the default
func pick(flag, env, def string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return def
}

func pickInt(flag int, env string, def int) (int, error) {
	if flag != 0 {
		return flag, nil
	}
	if v := os.Getenv(env); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("config: %s: %w", env, err)
		}
		return i, nil
	}
	return def, nil
}

func pickFloat(flag float64, env string, def float64) (float64, error) {
	if flag != 0 {
		return flag, nil
	}
	if v := os.Getenv(env); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("config: %s: %w", env, err)
		}
		return f, nil
	}
	return def, nil
}

// splitCSV trims and filters a comma-separated list
func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
