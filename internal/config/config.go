// Package config provides the go-simpler.org/env configuration table for the
// chat server.
package config

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"go-simpler.org/env"
)

// C holds the server configuration loaded from ECOCHAT_* environment
// variables and defaults.
type C struct {
	AppName          string        `env:"ECOCHAT_APP_NAME" default:"ecochat"`
	Listen           string        `env:"ECOCHAT_LISTEN" default:"0.0.0.0" usage:"network listen address"`
	Port             int           `env:"ECOCHAT_PORT" default:"3001" usage:"port to listen on"`
	LogLevel         string        `env:"ECOCHAT_LOG_LEVEL" default:"info" usage:"log level: debug info warn error"`
	LogFormat        string        `env:"ECOCHAT_LOG_FORMAT" default:"text" usage:"log format: text json"`
	RoutesFile       string        `env:"ECOCHAT_ROUTES_FILE" usage:"YAML file with websocket URL patterns; built-in patterns are used when empty"`
	AllowedOrigins   []string      `env:"ECOCHAT_ALLOWED_ORIGINS" default:"*" usage:"origins allowed for CORS and websocket upgrades (comma separated)"`
	RateLimit        float64       `env:"ECOCHAT_RATE_LIMIT" default:"100" usage:"websocket messages per second per connection"`
	RateBurst        int           `env:"ECOCHAT_RATE_BURST" default:"200" usage:"websocket message burst per connection"`
	RateLimitEnabled bool          `env:"ECOCHAT_RATE_LIMIT_ENABLED" default:"true" usage:"enable per-connection rate limiting"`
	UserIDParam      string        `env:"ECOCHAT_USER_ID_PARAM" default:"userId" usage:"websocket query parameter carrying the user id"`
	ShutdownTimeout  time.Duration `env:"ECOCHAT_SHUTDOWN_TIMEOUT" default:"5s" usage:"grace period for closing connections on shutdown"`
}

// New loads the configuration from the environment.
func New() (cfg *C, err error) {
	cfg = &C{}
	if err = env.Load(cfg, &env.Options{SliceSep: ","}); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the environment parser cannot.
func (c *C) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.RateLimitEnabled && (c.RateLimit <= 0 || c.RateBurst <= 0) {
		return fmt.Errorf("rate limit %v/s burst %d must be positive", c.RateLimit, c.RateBurst)
	}
	if c.UserIDParam == "" {
		return fmt.Errorf("user id parameter cannot be empty")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// Addr is the host:port the server binds.
func (c *C) Addr() string {
	return net.JoinHostPort(c.Listen, strconv.Itoa(c.Port))
}

// PrintHelp writes the environment variables understood by New.
func PrintHelp(w io.Writer) {
	fmt.Fprintf(w, "Environment variables:\n\n")
	env.Usage(&C{}, w, &env.Options{SliceSep: ","})
}
