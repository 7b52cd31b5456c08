package mcplink

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

type retrySchedule struct {
	cron *cron.Cron
}

// StartRetrySchedule nudges the link on a cron schedule, e.g. "@every 1m".
// Nudges are no-ops unless the link is Degraded past its cooldown, so an
// aggressive schedule stays harmless.
func (m *Manager) StartRetrySchedule(spec string) error {
	m.scheduleMu.Lock()
	defer m.scheduleMu.Unlock()

	if m.schedule != nil {
		return fmt.Errorf("retry schedule already running")
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, m.Nudge); err != nil {
		return fmt.Errorf("invalid retry schedule %q: %w", spec, err)
	}
	c.Start()
	m.schedule = &retrySchedule{cron: c}

	log.Info().Str("schedule", spec).Msg("Remote link retry schedule started")
	return nil
}

// StopRetrySchedule stops the retry schedule if one is running.
func (m *Manager) StopRetrySchedule() {
	m.scheduleMu.Lock()
	defer m.scheduleMu.Unlock()

	if m.schedule == nil {
		return
	}
	m.schedule.cron.Stop()
	m.schedule = nil
}
