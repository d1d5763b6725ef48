package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"cadverse/internal/shared/logger"
	"cadverse/internal/shared/settings"
	"cadverse/internal/shared/types"
)

// Loop advances DefaultModel along +X on every tick and broadcasts the
// committed states.
type Loop struct {
	store *Store
	out   types.ModelStateBroadcaster
	log   zerolog.Logger

	mu       sync.Mutex
	interval time.Duration
	stepX    float64
	paused   bool
	reset    chan time.Duration
}

func NewLoop(store *Store, out types.ModelStateBroadcaster, cfg *settings.SimulationSettings) *Loop {
	l := &Loop{
		store: store,
		out:   out,
		log:   logger.WithComponent("Simulation"),
		reset: make(chan time.Duration, 1),
	}
	l.apply(cfg)
	return l
}

func (l *Loop) apply(cfg *settings.SimulationSettings) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interval = time.Duration(cfg.TickIntervalMs) * time.Millisecond
	l.stepX = cfg.StepX
	l.paused = cfg.Paused
}

// requestReset hands the current interval to Run. Only the newest request is
// kept and the call never blocks, even when Run has stopped.
func (l *Loop) requestReset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.reset:
	default:
	}
	select {
	case l.reset <- l.interval:
	default:
	}
}

// Settings returns the values the loop is currently running with.
func (l *Loop) Settings() settings.SimulationSettings {
	l.mu.Lock()
	defer l.mu.Unlock()
	return settings.SimulationSettings{
		TickIntervalMs: int(l.interval / time.Millisecond),
		StepX:          l.stepX,
		Paused:         l.paused,
	}
}

// OnSettingsUpdate implements settings.ConfigurableModule.
func (l *Loop) OnSettingsUpdate(moduleKey string, newSettings interface{}) error {
	if moduleKey != settings.ModuleSimulation {
		return nil
	}
	cfg, ok := newSettings.(*settings.SimulationSettings)
	if !ok {
		return fmt.Errorf("simulation: unexpected settings type %T", newSettings)
	}
	l.apply(cfg)
	l.requestReset()

	l.log.Info().
		Int("tick_interval_ms", cfg.TickIntervalMs).
		Float64("step_x", cfg.StepX).
		Bool("paused", cfg.Paused).
		Msg("Simulation settings applied")
	return nil
}

// Step advances the simulation once and returns the encoded states.
func (l *Loop) Step() ([]byte, error) {
	l.mu.Lock()
	step := l.stepX
	l.mu.Unlock()

	next := l.store.Update(func(s States) {
		m, ok := s[DefaultModel]
		if !ok {
			m = ModelState{Rotation: IdentityRotation}
		}
		m.Position.X += step
		s[DefaultModel] = m
	})
	return json.Marshal(next)
}

func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	interval := l.interval
	l.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	l.log.Info().Dur("interval", interval).Msg("Simulation loop started")

	for {
		select {
		case <-ctx.Done():
			l.log.Info().Msg("Simulation loop stopped")
			return nil
		case d := <-l.reset:
			ticker.Reset(d)
		case <-ticker.C:
			l.mu.Lock()
			paused := l.paused
			l.mu.Unlock()
			if paused {
				continue
			}
			payload, err := l.Step()
			if err != nil {
				l.log.Error().Err(err).Msg("Failed to encode model states")
				continue
			}
			l.out.BroadcastModelStates(payload)
		}
	}
}
