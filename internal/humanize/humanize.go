// Package humanize produces randomized pointer, scroll and timing behavior.
package humanize

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

type Config struct {
	PreNavMin, PreNavMax           time.Duration
	MouseMovesMin, MouseMovesMax   int
	MoveStepsMin, MoveStepsMax     int
	ViewportMargin                 float64
	MovePauseMin, MovePauseMax     time.Duration
	ScrollMin, ScrollMax           int
	ScrollPauseMin, ScrollPauseMax time.Duration
	ThinkMin, ThinkMax             time.Duration
	KeyDelayMin, KeyDelayMax       time.Duration

	// Rng makes runs reproducible when set.
	Rng *rand.Rand
}

func DefaultConfig() Config {
	return Config{
		PreNavMin:      2 * time.Second,
		PreNavMax:      5 * time.Second,
		MouseMovesMin:  2,
		MouseMovesMax:  5,
		MoveStepsMin:   10,
		MoveStepsMax:   20,
		ViewportMargin: 100,
		MovePauseMin:   100 * time.Millisecond,
		MovePauseMax:   300 * time.Millisecond,
		ScrollMin:      200,
		ScrollMax:      500,
		ScrollPauseMin: 500 * time.Millisecond,
		ScrollPauseMax: 1500 * time.Millisecond,
		ThinkMin:       500 * time.Millisecond,
		ThinkMax:       2 * time.Second,
		KeyDelayMin:    50 * time.Millisecond,
		KeyDelayMax:    150 * time.Millisecond,
	}
}

type Humanizer struct {
	cfg    Config
	mu     sync.Mutex
	rng    *rand.Rand
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Humanizer {
	if logger == nil {
		logger = slog.Default()
	}
	rng := cfg.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Humanizer{
		cfg:    cfg,
		rng:    rng,
		logger: logger.With("component", "humanize"),
	}
}

// NewTestHumanizer returns a humanizer with a fixed seed.
func NewTestHumanizer(seed int64) *Humanizer {
	cfg := DefaultConfig()
	cfg.Rng = rand.New(rand.NewSource(seed))
	return New(cfg, nil)
}

func (h *Humanizer) Config() Config {
	return h.cfg
}

// Between returns a uniform int in [min, max].
func (h *Humanizer) Between(min, max int) int {
	if max <= min {
		return min
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return min + h.rng.Intn(max-min+1)
}

// Duration returns a uniform duration in [min, max].
func (h *Humanizer) Duration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return min + time.Duration(h.rng.Int63n(int64(max-min)+1))
}

// Float returns a uniform float in [min, max).
func (h *Humanizer) Float(min, max float64) float64 {
	if max <= min {
		return min
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return min + h.rng.Float64()*(max-min)
}

// Chance reports true with probability p.
func (h *Humanizer) Chance(p float64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.Float64() < p
}

func (h *Humanizer) KeyDelay() time.Duration {
	return h.Duration(h.cfg.KeyDelayMin, h.cfg.KeyDelayMax)
}

// PreNavigationDelay waits the randomized delay issued before every page load.
func (h *Humanizer) PreNavigationDelay(ctx context.Context, exec Executor) error {
	d := h.Duration(h.cfg.PreNavMin, h.cfg.PreNavMax)
	h.logger.Debug("pre-navigation delay", "delay", d)
	return exec.Sleep(ctx, d)
}

// Pause sleeps a random duration in [min, max].
func (h *Humanizer) Pause(ctx context.Context, exec Executor, min, max time.Duration) error {
	return exec.Sleep(ctx, h.Duration(min, max))
}

// Simulate moves the pointer a few times inside the viewport, scrolls a little in
// a random direction and pauses as if reading.
func (h *Humanizer) Simulate(ctx context.Context, exec Executor) error {
	m, err := exec.Metrics(ctx)
	if err != nil {
		return fmt.Errorf("failed to read viewport: %w", err)
	}

	width, height := m.ViewportWidth, m.ViewportHeight
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}
	margin := h.cfg.ViewportMargin
	if width <= 2*margin || height <= 2*margin {
		margin = 0
	}

	moves := h.Between(h.cfg.MouseMovesMin, h.cfg.MouseMovesMax)
	for i := 0; i < moves; i++ {
		x := h.Float(margin, width-margin)
		y := h.Float(margin, height-margin)
		steps := h.Between(h.cfg.MoveStepsMin, h.cfg.MoveStepsMax)
		if err := exec.MoveMouse(ctx, x, y, steps); err != nil {
			return fmt.Errorf("mouse move failed: %w", err)
		}
		if err := h.Pause(ctx, exec, h.cfg.MovePauseMin, h.cfg.MovePauseMax); err != nil {
			return err
		}
	}

	delta := float64(h.Between(h.cfg.ScrollMin, h.cfg.ScrollMax))
	if h.Chance(0.5) {
		delta = -delta
	}
	if err := exec.ScrollBy(ctx, delta); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	if err := h.Pause(ctx, exec, h.cfg.ScrollPauseMin, h.cfg.ScrollPauseMax); err != nil {
		return err
	}

	return h.Pause(ctx, exec, h.cfg.ThinkMin, h.cfg.ThinkMax)
}
