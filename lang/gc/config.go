package gc

import "github.com/caarlos0/env/v6"

// Config holds the heap's tunable thresholds, overridable via environment
// variables so embedders and tests can shrink the heap to provoke
// collections without recompiling (grounded on the teacher's env-driven
// configuration pattern).
type Config struct {
	NurseryBytes   int `env:"LUMEN_GC_NURSERY_BYTES" envDefault:"1048576"`
	AgingBytes     int `env:"LUMEN_GC_AGING_BYTES" envDefault:"8388608"`
	OldGenBytes    int `env:"LUMEN_GC_OLDGEN_BYTES" envDefault:"16777216"`
	GrowthFactor   int `env:"LUMEN_GC_GROWTH_FACTOR" envDefault:"2"`
	DisableMajorGC bool `env:"LUMEN_GC_DISABLE_MAJOR" envDefault:"false"`
}

// ConfigFromEnv parses Config from the process environment, falling back to
// the documented defaults for anything unset.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultConfig returns Config's zero-input defaults, useful for tests that
// do not want to touch the environment.
func DefaultConfig() Config {
	return Config{
		NurseryBytes: 1 << 20,
		AgingBytes:   8 << 20,
		OldGenBytes:  16 << 20,
		GrowthFactor: 2,
	}
}
