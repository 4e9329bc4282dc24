// Package config holds rulecore's runtime settings: dialogue thresholds,
// extra verbs, the generative model and logging.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nathoo/rulecore/engine/dialogue"
	"github.com/nathoo/rulecore/engine/triggers"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "rulecore.yaml"

// Config holds all rulecore configuration.
type Config struct {
	// Seed overrides the content's RNG seed when non-zero.
	Seed int64 `yaml:"seed"`

	Thresholds dialogue.Thresholds `yaml:"thresholds"`

	// Verbs are added to the stock vocabulary, after any the content declares.
	Verbs map[string][]VerbSlot `yaml:"verbs"`

	Model   ModelConfig   `yaml:"model"`
	Logging LoggingConfig `yaml:"logging"`

	// SaveDir is where /save writes replay logs.
	SaveDir string `yaml:"save_dir"`
}

// VerbSlot maps a verb onto a trigger func.
type VerbSlot struct {
	Func      string `yaml:"func"`
	Positions []int  `yaml:"positions"`
	Speech    string `yaml:"speech"`
}

// ModelConfig configures the generative dialogue fallback.
type ModelConfig struct {
	Provider  string `yaml:"provider"` // "" or "none", "gemini"
	Name      string `yaml:"name"`
	APIKeyEnv string `yaml:"api_key_env"`
	Timeout   string `yaml:"timeout"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Thresholds: dialogue.DefaultThresholds(),
		Model: ModelConfig{
			Name:      "gemini-2.5-flash",
			APIKeyEnv: "GEMINI_API_KEY",
			Timeout:   "20s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		SaveDir: filepath.Join(home, ".rulecore", "saves"),
	}
}

// Load reads a YAML file over the defaults. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate reports every malformed setting.
func (c *Config) Validate() error {
	var errs []error
	t := c.Thresholds
	for name, v := range map[string]float64{
		"tell": t.Tell, "tell_with_model": t.TellWithModel, "say": t.Say,
		"shout": t.Shout, "act_failed": t.ActFailed,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("thresholds.%s must be in [0, 1], got %v", name, v))
		}
	}
	for verb, slots := range c.Verbs {
		for i, s := range slots {
			if s.Func == "" {
				errs = append(errs, fmt.Errorf("verbs.%s[%d]: missing func", verb, i))
				continue
			}
			switch dialogue.Speech(s.Speech) {
			case "", dialogue.Tell, dialogue.Say, dialogue.Shout, dialogue.ActFailed:
				if err := s.slot().Validate(); err != nil {
					errs = append(errs, fmt.Errorf("verbs.%s[%d]: %w", verb, i, err))
				}
			default:
				errs = append(errs, fmt.Errorf("verbs.%s[%d]: unknown speech %q", verb, i, s.Speech))
			}
		}
	}
	switch c.Model.Provider {
	case "", "none", "gemini":
	default:
		errs = append(errs, fmt.Errorf("model.provider %q is not supported", c.Model.Provider))
	}
	if c.Model.Timeout != "" {
		if _, err := time.ParseDuration(c.Model.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("model.timeout: %w", err))
		}
	}
	if _, err := c.Logging.level(); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	return errors.Join(errs...)
}

// Vocabulary converts the configured verbs into trigger slots. A slot with
// no positions takes the actor and one object.
func (c *Config) Vocabulary() triggers.Vocabulary {
	if len(c.Verbs) == 0 {
		return nil
	}
	v := triggers.Vocabulary{}
	for verb, slots := range c.Verbs {
		for _, s := range slots {
			v[verb] = append(v[verb], s.slot())
		}
	}
	return v
}

func (s VerbSlot) slot() triggers.Slot {
	positions := s.Positions
	if len(positions) == 0 {
		positions = []int{0, 1}
	}
	return triggers.Slot{Func: s.Func, Positions: positions, Speech: dialogue.Speech(s.Speech)}
}

// Enabled reports whether a model provider is configured.
func (m ModelConfig) Enabled() bool {
	return m.Provider != "" && m.Provider != "none"
}

// APIKey reads the model's API key from its environment variable.
func (m ModelConfig) APIKey() string {
	if m.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(m.APIKeyEnv)
}

// TimeoutDuration returns the per-call model timeout, or 0 for none.
func (m ModelConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(m.Timeout)
	if err != nil {
		return 0
	}
	return d
}
