// Package config holds the environment-driven tunables that the run
// command in internal/maincmd reads and hands to the GC (the whole
// gc.Config) and the VM (VM.MaxFrames; VM.MaxForEachNesting is parsed but
// not read, the VM's nesting limit being a constant), using the same
// caarlos0/env parsing style the teacher carries as a transitive
// dependency of mainer but never itself exercises directly.
package config

import (
	"github.com/caarlos0/env/v6"

	"github.com/mna/lumen/lang/gc"
)

// VM carries the stack VM's own tunables, distinct from the heap's.
type VM struct {
	MaxFrames         int `env:"LUMEN_VM_MAX_FRAMES" envDefault:"256"`
	MaxForEachNesting int `env:"LUMEN_VM_MAX_FOR_EACH_NESTING" envDefault:"64"`
}

// Config is the full set of environment-overridable tunables for one
// run of the VM.
type Config struct {
	GC gc.Config
	VM VM
}

// FromEnv parses Config from the process environment, falling back to
// documented defaults for anything unset.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg.GC); err != nil {
		return Config{}, err
	}
	if err := env.Parse(&cfg.VM); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns Config's zero-input defaults, for callers that do not
// want to touch the environment (tests, embedders).
func Default() Config {
	return Config{
		GC: gc.DefaultConfig(),
		VM: VM{MaxFrames: 256, MaxForEachNesting: 64},
	}
}
