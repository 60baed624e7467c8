package proc

import (
	"errors"
	"fmt"

	"caspian/internal/constants"
)

var (
	// ErrBadConfiguration reports a configuration that fails schema
	// validation at processor construction.
	ErrBadConfiguration = errors.New("bad configuration")
	// ErrUnsupportedBackend reports a configuration naming a backend this
	// build does not provide.
	ErrUnsupportedBackend = errors.New("unsupported backend")
	// ErrNotLoaded reports an engine operation invoked before a network was
	// loaded.
	ErrNotLoaded = errors.New("no network loaded")
	// ErrInvalidArgument reports mismatched bulk-input arrays or a nil
	// network passed to the adapter.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrLengthMismatch reports mis-sized DVS event arrays.
	ErrLengthMismatch = errors.New("length mismatch")
)

// BackendEventSimulator is the software event simulator, the default and only
// backend provided by this build.
const BackendEventSimulator = "Event_Simulator"

// Config is a validated processor configuration.
type Config struct {
	Backend         string
	Debug           bool
	LeakEnable      bool
	MinLeak         int
	MaxLeak         int
	MinThreshold    int
	MaxThreshold    int
	MinWeight       int
	MaxWeight       int
	MinAxonDelay    int
	MaxAxonDelay    int
	MinSynapseDelay int
	MaxSynapseDelay int
}

// configSpecs maps recognized option names to expected kinds:
// I = integer, B = boolean, S = string.
var configSpecs = map[string]byte{
	"Backend":           'S',
	"Debug":             'B',
	"Leak_Enable":       'B',
	"Min_Leak":          'I',
	"Max_Leak":          'I',
	"Min_Threshold":     'I',
	"Max_Threshold":     'I',
	"Min_Weight":        'I',
	"Max_Weight":        'I',
	"Min_Axon_Delay":    'I',
	"Max_Axon_Delay":    'I',
	"Min_Synapse_Delay": 'I',
	"Max_Synapse_Delay": 'I',
}

func defaultConfig() Config {
	return Config{
		Backend:         BackendEventSimulator,
		LeakEnable:      true,
		MinLeak:         0,
		MaxLeak:         int(constants.MaxLeak),
		MinThreshold:    int(constants.MinThreshold),
		MaxThreshold:    int(constants.MaxThreshold),
		MinWeight:       int(constants.MinWeight),
		MaxWeight:       int(constants.MaxWeight),
		MinAxonDelay:    int(constants.MinAxonDelay),
		MaxAxonDelay:    int(constants.DefaultMaxAxonDelay),
		MinSynapseDelay: int(constants.MinDelay),
		MaxSynapseDelay: int(constants.MaxDelay),
	}
}

// parseConfig validates a raw option map against the schema and applies it
// over the defaults.
func parseConfig(raw map[string]any) (Config, error) {
	cfg := defaultConfig()

	for key, value := range raw {
		kind, ok := configSpecs[key]
		if !ok {
			return Config{}, fmt.Errorf("%w: unrecognized option %q", ErrBadConfiguration, key)
		}

		switch kind {
		case 'I':
			iv, ok := asInt(value)
			if !ok {
				return Config{}, fmt.Errorf("%w: option %q must be an integer", ErrBadConfiguration, key)
			}
			cfg.setInt(key, iv)
		case 'B':
			bv, ok := value.(bool)
			if !ok {
				return Config{}, fmt.Errorf("%w: option %q must be a boolean", ErrBadConfiguration, key)
			}
			cfg.setBool(key, bv)
		case 'S':
			sv, ok := value.(string)
			if !ok {
				return Config{}, fmt.Errorf("%w: option %q must be a string", ErrBadConfiguration, key)
			}
			cfg.Backend = sv
		}
	}

	if !cfg.LeakEnable {
		cfg.MinLeak = -1
		cfg.MaxLeak = -1
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) setInt(key string, v int) {
	switch key {
	case "Min_Leak":
		c.MinLeak = v
	case "Max_Leak":
		c.MaxLeak = v
	case "Min_Threshold":
		c.MinThreshold = v
	case "Max_Threshold":
		c.MaxThreshold = v
	case "Min_Weight":
		c.MinWeight = v
	case "Max_Weight":
		c.MaxWeight = v
	case "Min_Axon_Delay":
		c.MinAxonDelay = v
	case "Max_Axon_Delay":
		c.MaxAxonDelay = v
	case "Min_Synapse_Delay":
		c.MinSynapseDelay = v
	case "Max_Synapse_Delay":
		c.MaxSynapseDelay = v
	}
}

func (c *Config) setBool(key string, v bool) {
	switch key {
	case "Debug":
		c.Debug = v
	case "Leak_Enable":
		c.LeakEnable = v
	}
}

func (c *Config) validate() error {
	type boundsCheck struct {
		name     string
		min, max int
		lo, hi   int
	}
	checks := []boundsCheck{
		{"Leak", c.MinLeak, c.MaxLeak, int(constants.MinLeak), int(constants.MaxLeak)},
		{"Threshold", c.MinThreshold, c.MaxThreshold, int(constants.MinThreshold), int(constants.MaxThreshold)},
		{"Weight", c.MinWeight, c.MaxWeight, int(constants.MinWeight), int(constants.MaxWeight)},
		{"Axon_Delay", c.MinAxonDelay, c.MaxAxonDelay, int(constants.MinAxonDelay), int(constants.MaxAxonDelay)},
		{"Synapse_Delay", c.MinSynapseDelay, c.MaxSynapseDelay, int(constants.MinDelay), int(constants.MaxDelay)},
	}
	for _, chk := range checks {
		if chk.min > chk.max {
			return fmt.Errorf("%w: Min_%s %d exceeds Max_%s %d", ErrBadConfiguration, chk.name, chk.min, chk.name, chk.max)
		}
		if chk.min < chk.lo || chk.max > chk.hi {
			return fmt.Errorf("%w: %s range [%d, %d] outside supported [%d, %d]",
				ErrBadConfiguration, chk.name, chk.min, chk.max, chk.lo, chk.hi)
		}
	}
	return nil
}

// Map returns the resolved configuration, defaults included, as an option
// map.
func (c Config) Map() map[string]any {
	return map[string]any{
		"Backend":           c.Backend,
		"Debug":             c.Debug,
		"Leak_Enable":       c.LeakEnable,
		"Min_Leak":          c.MinLeak,
		"Max_Leak":          c.MaxLeak,
		"Min_Threshold":     c.MinThreshold,
		"Max_Threshold":     c.MaxThreshold,
		"Min_Weight":        c.MinWeight,
		"Max_Weight":        c.MaxWeight,
		"Min_Axon_Delay":    c.MinAxonDelay,
		"Max_Axon_Delay":    c.MaxAxonDelay,
		"Min_Synapse_Delay": c.MinSynapseDelay,
		"Max_Synapse_Delay": c.MaxSynapseDelay,
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}
