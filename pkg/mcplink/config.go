package mcplink

import "time"

// Config controls the remote link. Zero values fall back to defaults.
type Config struct {
	// Endpoint is the streamable HTTP URL of the MCP server, without
	// credentials.
	Endpoint string

	// APIKey authenticates against the server. It is treated as opaque,
	// injected by the transport on each request, and never logged.
	APIKey string

	// Profile selects a server-side configuration profile, when the server
	// supports one.
	Profile string

	// ConnectTimeout bounds each connection attempt.
	ConnectTimeout time.Duration

	// MaxRetries is the number of connection attempts per Connect call.
	MaxRetries int

	// CallTimeout bounds each remote tool call.
	CallTimeout time.Duration

	// FailureThreshold is the number of consecutive call failures that
	// degrades the link.
	FailureThreshold int

	// ReconnectCooldown is how long a degraded link waits before scheduled
	// retries are honored again.
	ReconnectCooldown time.Duration

	// BackoffBase and BackoffMax shape the doubling delay between
	// connection attempts.
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

const (
	defaultConnectTimeout    = 30 * time.Second
	defaultMaxRetries        = 3
	defaultCallTimeout       = 30 * time.Second
	defaultFailureThreshold  = 5
	defaultReconnectCooldown = 5 * time.Minute
	defaultBackoffBase       = 2 * time.Second
	defaultBackoffMax        = 30 * time.Second
)

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = defaultCallTimeout
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = defaultFailureThreshold
	}
	if c.ReconnectCooldown <= 0 {
		c.ReconnectCooldown = defaultReconnectCooldown
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = defaultBackoffBase
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = defaultBackoffMax
	}
	return c
}
