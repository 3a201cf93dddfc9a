package centrifuge

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// maxClientNameLength bounds ClientConfig.Name/Version (protocol limit).
const maxClientNameLength = 16

// GetTokenFunc returns a fresh JWT for the connection, or an error if one
// cannot be obtained. Called on first connect (if no static token is set),
// on reconnect after a TokenExpired error, and when the refresh timer fires.
type GetTokenFunc func(ctx context.Context) (string, error)

// ClientConfig configures a Client. It is immutable once passed to
// NewClient.
type ClientConfig struct {
	// Token is a static JWT presented on connect. If empty, or once the
	// server has reported it expired, GetToken is consulted instead. When
	// GetToken is set, the refresh timer always fetches a token from it.
	Token string
	// GetToken is called when Token is empty, or after the server
	// reports the current token as expired.
	GetToken GetTokenFunc

	// Name identifies the client implementation/platform, e.g. "android".
	// Must be at most 16 bytes.
	Name string
	// Version identifies the client build. Must be at most 16 bytes.
	Version string

	// MaxPingDelay is the grace period added to the server-announced
	// ping interval before the connection is considered dead.
	MaxPingDelay time.Duration

	// MinReconnectDelay is the backoff floor. Must be <= 65535ms and
	// less than MaxReconnectDelay.
	MinReconnectDelay time.Duration
	// MaxReconnectDelay is the backoff ceiling.
	MaxReconnectDelay time.Duration

	// RefreshTokenBeforeExpiry is how long before TTL expiry the refresh
	// timer fires to fetch a new token.
	RefreshTokenBeforeExpiry time.Duration

	// LogLevel gates which LogEntry values reach LogHandler.
	LogLevel LogLevel
	// LogHandler receives every LogEntry whose level is enabled. Nil
	// disables logging entirely.
	LogHandler LogHandler

	// MetricsRegisterer, if set, enables Prometheus instrumentation for
	// this Client's commands, reconnects, and errors.
	MetricsRegisterer prometheus.Registerer

	// Executor is the strand the Client is bound to. Defaults to
	// NewExecutor() when nil.
	Executor Executor
}

// DefaultClientConfig returns a ClientConfig with the teacher-idiomatic
// defaults for every field a caller is likely to leave unset.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Name:                     "go",
		MaxPingDelay:             10 * time.Second,
		MinReconnectDelay:        500 * time.Millisecond,
		MaxReconnectDelay:        20 * time.Second,
		RefreshTokenBeforeExpiry: 180 * time.Second,
		LogLevel:                 LogLevelNone,
	}
}

// Validate checks ClientConfig invariants, returning a *ConfigError on
// the first violation.
func (c ClientConfig) Validate() error {
	if len(c.Name) > maxClientNameLength {
		return &ConfigError{Reason: "name exceeds 16 bytes", Err: ErrInvalidArgument}
	}
	if len(c.Version) > maxClientNameLength {
		return &ConfigError{Reason: "version exceeds 16 bytes", Err: ErrInvalidArgument}
	}
	if c.MinReconnectDelay > 65535*time.Millisecond {
		return &ConfigError{Reason: "min reconnect delay exceeds 65535ms", Err: ErrInvalidArgument}
	}
	if c.MinReconnectDelay >= c.MaxReconnectDelay {
		return &ConfigError{Reason: "min reconnect delay must be less than max reconnect delay", Err: ErrInvalidArgument}
	}
	return nil
}

func (c ClientConfig) withDefaults() ClientConfig {
	d := DefaultClientConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.MaxPingDelay == 0 {
		c.MaxPingDelay = d.MaxPingDelay
	}
	if c.MinReconnectDelay == 0 {
		c.MinReconnectDelay = d.MinReconnectDelay
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = d.MaxReconnectDelay
	}
	if c.RefreshTokenBeforeExpiry == 0 {
		c.RefreshTokenBeforeExpiry = d.RefreshTokenBeforeExpiry
	}
	if c.Executor == nil {
		c.Executor = NewExecutor()
	}
	return c
}
