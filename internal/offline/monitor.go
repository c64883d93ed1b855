package offline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Monitor tracks connectivity. Calls report their outcome as they happen; an
// offline → online transition fires OnOnline once. A periodic probe is only a
// safety net for when nothing else is talking to the server.
type Monitor struct {
	probe    func(context.Context) error
	interval time.Duration
	onOnline func(context.Context)

	mu     sync.Mutex
	online bool
}

// NewMonitor starts in the online state.
func NewMonitor(probe func(context.Context) error, interval time.Duration, onOnline func(context.Context)) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{probe: probe, interval: interval, onOnline: onOnline, online: true}
}

func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Report records the observed connectivity.
func (m *Monitor) Report(ctx context.Context, online bool) {
	m.mu.Lock()
	was := m.online
	m.online = online
	m.mu.Unlock()

	switch {
	case !was && online:
		log.Info().Msg("offline: connectivity restored")
		if m.onOnline != nil {
			go m.onOnline(context.WithoutCancel(ctx))
		}
	case was && !online:
		log.Warn().Msg("offline: connectivity lost, capturing actions locally")
	}
}

// Check probes once and reports the result.
func (m *Monitor) Check(ctx context.Context) bool {
	online := m.probe(ctx) == nil
	m.Report(ctx, online)
	return online
}

// Run probes every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
