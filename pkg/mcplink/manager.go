package mcplink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"github.com/dajeong/miso/internal/observability"
	"github.com/dajeong/miso/pkg/toolset"
)

const (
	clientName    = "miso"
	clientVersion = "0.1.0"
)

// State describes the remote link.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateHealthy
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	default:
		return "disconnected"
	}
}

// MarshalJSON renders the state label rather than its numeric code.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// CallResult carries the outcome of a remote tool call.
type CallResult struct {
	// Content is the concatenated text content of the reply.
	Content string
	// Structured is the structured content, when the server returned one.
	Structured interface{}
	// IsError reports a tool-level failure. The link itself stayed healthy.
	IsError bool
}

// Status is a point-in-time snapshot of the link for diagnostics.
type Status struct {
	State               State     `json:"state"`
	Endpoint            string    `json:"endpoint"`
	Tools               int       `json:"tools"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
	DegradedSince       time.Time `json:"degraded_since,omitempty"`
}

// Manager owns the single logical connection to the remote tool server.
// Every connection attempt passes through a compare-and-swap guard, so at
// most one is in flight regardless of who triggered it.
type Manager struct {
	cfg       Config
	transport func() mcp.Transport

	state      atomic.Int32
	failures   atomic.Int32
	connecting atomic.Bool
	degradedAt atomic.Int64

	mu      sync.Mutex
	session *mcp.ClientSession
	tools   []toolset.Descriptor
	lastErr string

	scheduleMu sync.Mutex
	schedule   *retrySchedule
}

// New builds a manager that connects to cfg.Endpoint over streamable HTTP.
func New(cfg Config) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{cfg: cfg}
	m.transport = func() mcp.Transport { return newStreamableTransport(cfg) }
	m.setState(StateDisconnected)
	return m
}

// NewWithTransport builds a manager over a caller-supplied transport
// factory. Each connection attempt consumes one transport.
func NewWithTransport(cfg Config, factory func() mcp.Transport) *Manager {
	cfg = cfg.withDefaults()
	m := &Manager{cfg: cfg, transport: factory}
	m.setState(StateDisconnected)
	return m
}

// Connect establishes the link, retrying up to MaxRetries times with
// doubling backoff. It serves both the initial connect and manual retries
// from Degraded. A second caller while an attempt is running gets
// ErrConnectInFlight.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.connecting.CompareAndSwap(false, true) {
		return ErrConnectInFlight
	}
	defer m.connecting.Store(false)
	return m.connect(ctx)
}

// Nudge triggers a background reconnect when the link is Degraded and the
// cooldown has elapsed. It returns immediately and is cheap to call before
// every user turn.
func (m *Manager) Nudge() {
	if m.State() != StateDegraded {
		return
	}
	degradedAt := m.degradedAt.Load()
	if degradedAt == 0 {
		return
	}
	if time.Since(time.Unix(0, degradedAt)) < m.cfg.ReconnectCooldown {
		return
	}
	go m.repair()
}

// CallTool invokes a remote tool over the active session. The result's
// IsError flag carries tool-level failures; an error return means the call
// produced no result at all.
func (m *Manager) CallTool(ctx context.Context, name string, args map[string]interface{}) (*CallResult, error) {
	if m.State() != StateHealthy {
		return nil, ErrNotHealthy
	}

	m.mu.Lock()
	session := m.session
	m.mu.Unlock()
	if session == nil {
		return nil, ErrNotHealthy
	}

	callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()

	res, err := session.CallTool(callCtx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		m.recordFailure(err)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("remote call timed out: %w", err)
		}
		return nil, fmt.Errorf("%w: %v", ErrRemoteProtocol, err)
	}

	m.failures.Store(0)
	observability.SetLinkFailureStreak(0)

	return &CallResult{
		Content:    textContent(res),
		Structured: res.StructuredContent,
		IsError:    res.IsError,
	}, nil
}

// Tools returns the descriptors advertised by the server, or nil while the
// link is not Healthy.
func (m *Manager) Tools() []toolset.Descriptor {
	if m.State() != StateHealthy {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]toolset.Descriptor, len(m.tools))
	copy(out, m.tools)
	return out
}

// State returns the current link state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// ConsecutiveFailures returns the call failures since the last success.
func (m *Manager) ConsecutiveFailures() int {
	return int(m.failures.Load())
}

// Status returns a snapshot of the link for diagnostics.
func (m *Manager) Status() Status {
	m.mu.Lock()
	tools := len(m.tools)
	lastErr := m.lastErr
	m.mu.Unlock()

	status := Status{
		State:               m.State(),
		Endpoint:            m.cfg.Endpoint,
		Tools:               tools,
		ConsecutiveFailures: m.ConsecutiveFailures(),
		LastError:           lastErr,
	}
	if at := m.degradedAt.Load(); at != 0 && status.State == StateDegraded {
		status.DegradedSince = time.Unix(0, at)
	}
	return status
}

// Close tears the link down and stops any retry schedule.
func (m *Manager) Close() {
	m.StopRetrySchedule()
	m.closeSession()
	m.setState(StateDisconnected)
}

func (m *Manager) connect(ctx context.Context) error {
	m.setState(StateConnecting)
	m.closeSession()

	bo := newBackoff(m.cfg.BackoffBase, m.cfg.BackoffMax)
	var lastErr error

	for attempt := 1; attempt <= m.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			if err := bo.Sleep(ctx); err != nil {
				m.markDegraded(err)
				observability.RecordLinkReconnect(false)
				return err
			}
		}

		log.Info().
			Str("endpoint", m.cfg.Endpoint).
			Int("attempt", attempt).
			Int("max_retries", m.cfg.MaxRetries).
			Msg("Connecting to remote tool server")

		err := m.attempt(ctx)
		if err == nil {
			m.failures.Store(0)
			observability.SetLinkFailureStreak(0)
			m.degradedAt.Store(0)

			m.mu.Lock()
			m.lastErr = ""
			toolCount := len(m.tools)
			m.mu.Unlock()

			m.setState(StateHealthy)
			observability.RecordLinkReconnect(true)
			observability.RecordLinkAudit(ctx, "connect", "success", map[string]interface{}{
				"endpoint": m.cfg.Endpoint,
				"tools":    toolCount,
				"attempt":  attempt,
			})
			log.Info().Int("tools", toolCount).Msg("Remote tool server connected")
			return nil
		}

		if ctx.Err() != nil {
			m.markDegraded(ctx.Err())
			observability.RecordLinkReconnect(false)
			return ctx.Err()
		}

		lastErr = classifyConnectErr(err)
		log.Warn().Err(lastErr).Int("attempt", attempt).Msg("Connection attempt failed")
	}

	err := fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, m.cfg.MaxRetries, lastErr)
	m.markDegraded(err)
	observability.RecordLinkReconnect(false)
	log.Warn().Err(err).Msg("Remote link degraded; local tools remain available")
	return err
}

// attempt runs a single bounded connection attempt: handshake, then tool
// listing. On success the session and tool snapshot are installed together.
func (m *Manager) attempt(ctx context.Context) error {
	attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: clientName, Version: clientVersion}, nil)
	session, err := client.Connect(attemptCtx, m.transport(), nil)
	if err != nil {
		return err
	}

	listing, err := session.ListTools(attemptCtx, &mcp.ListToolsParams{})
	if err != nil {
		_ = session.Close()
		return err
	}

	m.mu.Lock()
	m.session = session
	m.tools = descriptorsFromTools(listing.Tools)
	m.mu.Unlock()
	return nil
}

// repair runs a full bounded reconnect in the background. Duplicate
// triggers while one is running are dropped.
func (m *Manager) repair() {
	if !m.connecting.CompareAndSwap(false, true) {
		return
	}
	defer m.connecting.Store(false)

	if err := m.connect(context.Background()); err != nil {
		log.Warn().Err(err).Msg("Background reconnect failed")
	}
}

func (m *Manager) recordFailure(err error) {
	failures := int(m.failures.Add(1))
	observability.SetLinkFailureStreak(failures)

	m.mu.Lock()
	m.lastErr = err.Error()
	m.mu.Unlock()

	log.Warn().Err(err).Int("consecutive_failures", failures).Msg("Remote tool call failed")

	if failures >= m.cfg.FailureThreshold {
		m.markDegraded(err)
		log.Warn().Int("consecutive_failures", failures).Msg("Remote link degraded after repeated call failures")
		return
	}
	if isConnectionErr(err) {
		go m.repair()
	}
}

func (m *Manager) markDegraded(err error) {
	m.degradedAt.Store(time.Now().UnixNano())
	metadata := map[string]interface{}{"endpoint": m.cfg.Endpoint}
	if err != nil {
		m.mu.Lock()
		m.lastErr = err.Error()
		m.mu.Unlock()
		metadata["error"] = err.Error()
	}
	m.setState(StateDegraded)
	observability.RecordLinkAudit(context.Background(), "degrade", "failure", metadata)
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
	observability.SetLinkState(s.String())
}

func (m *Manager) closeSession() {
	m.mu.Lock()
	session := m.session
	m.session = nil
	m.tools = nil
	m.mu.Unlock()

	if session != nil {
		_ = session.Close()
	}
}

func classifyConnectErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrConnectTimeout, err)
	}
	if strings.Contains(err.Error(), "connection refused") {
		return fmt.Errorf("%w: %v", ErrConnectionRefused, err)
	}
	return fmt.Errorf("%w: %v", ErrProtocolNegotiation, err)
}

// isConnectionErr reports whether a call failure looks like a broken
// connection rather than a server-side rejection.
func isConnectionErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "EOF")
}
