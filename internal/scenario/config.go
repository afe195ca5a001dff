package scenario

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "5s".
type Duration time.Duration

// UnmarshalYAML decodes a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("bad duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// D returns the plain time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// ClientConfig describes how to reach the database client program.
type ClientConfig struct {
	// Command is the client argv, without the prompt option.
	Command []string `yaml:"command"`
	// PromptFlag is the client option that sets its prompt string; each
	// session's name is passed as its value so the two clients are
	// distinguishable in transcripts.
	PromptFlag string `yaml:"prompt_flag"`
	// UseShell runs the client inside an interactive shell instead of
	// spawning it directly. Only then can an interrupt drop the session to
	// the parent shell, in which case the scenario restarts the client.
	UseShell bool `yaml:"use_shell"`
}

// Config parameterizes the window-view watch scenario.
type Config struct {
	Name   string       `yaml:"name"`
	Client ClientConfig `yaml:"client"`

	Table   string `yaml:"table"`
	View    string `yaml:"view"`
	Inserts int    `yaml:"inserts"`

	// Settings are issued on the watching client before the schema is set
	// up; PeerSettings on the inserting client.
	Settings     []string `yaml:"settings"`
	PeerSettings []string `yaml:"peer_settings"`

	StepTimeout  Duration `yaml:"step_timeout"`
	WatchTimeout Duration `yaml:"watch_timeout"`
}

// Load reads and validates a scenario config from a YAML file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks required fields and fills in the stock scenario defaults:
// a test.mt source table, a test.wv view over 1-second tumble windows, two
// inserts, and the experimental window view toggles.
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	if len(c.Client.Command) == 0 {
		return errors.New("client.command is required")
	}
	if c.Client.PromptFlag == "" {
		c.Client.PromptFlag = "--prompt"
	}
	if c.Table == "" {
		c.Table = "test.mt"
	}
	if c.View == "" {
		c.View = "test.wv"
	}
	if c.Inserts <= 0 {
		c.Inserts = 2
	}
	if c.Settings == nil {
		c.Settings = []string{
			"SET allow_experimental_window_view = 1",
			"SET window_view_heartbeat_interval = 1",
		}
	}
	if c.PeerSettings == nil {
		c.PeerSettings = []string{
			"SET allow_experimental_window_view = 1",
		}
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = Duration(5 * time.Second)
	}
	if c.WatchTimeout <= 0 {
		c.WatchTimeout = Duration(20 * time.Second)
	}
	return nil
}
