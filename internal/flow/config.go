package flow

import (
	"fmt"
	"log/slog"
	"time"
)

// DefaultReelLength is the nominal reel duration used for progress reporting.
const DefaultReelLength = 30 * time.Second

// DefaultSubmitTimeout bounds a single call into the Submitter.
const DefaultSubmitTimeout = 30 * time.Second

// Config is the validated, read-only scene and step tables plus timing.
// One Config is shared by every flow in the process.
type Config struct {
	name          string
	scenes        []Definition
	steps         []Definition
	settle        time.Duration
	tick          time.Duration
	reelLength    time.Duration
	submitTimeout time.Duration
}

// ConfigOption customizes a Config.
type ConfigOption func(*Config)

// WithName labels the configuration (used in submissions and logs).
func WithName(name string) ConfigOption {
	return func(c *Config) { c.name = name }
}

// WithSettleDelay sets the wizard settle delay. Zero or less settles synchronously.
func WithSettleDelay(d time.Duration) ConfigOption {
	return func(c *Config) { c.settle = d }
}

// WithTickInterval sets the reel clock resolution.
func WithTickInterval(d time.Duration) ConfigOption {
	return func(c *Config) {
		if d > 0 {
			c.tick = d
		}
	}
}

// WithReelLength sets the duration progress is measured against on the reel.
func WithReelLength(d time.Duration) ConfigOption {
	return func(c *Config) {
		if d > 0 {
			c.reelLength = d
		}
	}
}

// WithSubmitTimeout bounds the submission call.
func WithSubmitTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		if d > 0 {
			c.submitTimeout = d
		}
	}
}

// NewConfig validates both tables once and copies them. A validation failure
// is a *ConfigurationError and the flow must not be started.
func NewConfig(scenes, steps []Definition, opts ...ConfigOption) (*Config, error) {
	slog.Debug("flow.NewConfig invoked", "scenes", len(scenes), "steps", len(steps))
	if err := ValidateScenes(scenes); err != nil {
		return nil, fmt.Errorf("validate scenes: %w", err)
	}
	if err := ValidateSteps(steps); err != nil {
		return nil, fmt.Errorf("validate steps: %w", err)
	}
	c := &Config{
		name:          "default",
		scenes:        cloneDefinitions(scenes),
		steps:         cloneDefinitions(steps),
		settle:        DefaultSettleDelay,
		tick:          DefaultTickInterval,
		reelLength:    DefaultReelLength,
		submitTimeout: DefaultSubmitTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	slog.Debug("flow.NewConfig succeeded", "name", c.name, "settle", c.settle, "tick", c.tick)
	return c, nil
}

// Name returns the configuration label.
func (c *Config) Name() string { return c.name }

// Scenes returns the reel table. Callers must not modify it.
func (c *Config) Scenes() []Definition { return c.scenes }

// Steps returns the questionnaire table. Callers must not modify it.
func (c *Config) Steps() []Definition { return c.steps }

// SettleDelay returns the wizard settle delay.
func (c *Config) SettleDelay() time.Duration { return c.settle }

// Step returns the step with the given id.
func (c *Config) Step(id int) (Definition, bool) {
	if id < 0 || id >= len(c.steps) {
		return Definition{}, false
	}
	return c.steps[id], true
}

func cloneDefinitions(defs []Definition) []Definition {
	out := make([]Definition, len(defs))
	for i, d := range defs {
		if d.Options != nil {
			d.Options = append([]string(nil), d.Options...)
		}
		if d.Window != nil {
			w := *d.Window
			d.Window = &w
		}
		out[i] = d
	}
	return out
}
