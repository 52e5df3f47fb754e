// Package config loads the botrun YAML configuration: the simulated world,
// the actors and their plans, and where traces go.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"botscript.ai/internal/script"
)

type Config struct {
	TickRateHz          int `yaml:"tick_rate_hz"`
	DefaultTimeoutTicks int `yaml:"default_timeout_ticks"`
	// MaxTicks stops a deterministic run that has not finished; 0 means
	// no limit.
	MaxTicks int `yaml:"max_ticks"`

	World    WorldSpec    `yaml:"world"`
	Actors   []ActorSpec  `yaml:"actors"`
	Trace    TraceSpec    `yaml:"trace"`
	Observer ObserverSpec `yaml:"observer"`
}

type WorldSpec struct {
	ID               string              `yaml:"id"`
	BoundaryR        int                 `yaml:"boundary_r"`
	InteractRange    int                 `yaml:"interact_range"`
	MaxEvents        int                 `yaml:"max_events"`
	StarterCoins     int                 `yaml:"starter_coins"`
	StarterItems     map[string]int      `yaml:"starter_items,omitempty"`
	SellBackPermille int                 `yaml:"sell_back_permille"`
	Items            map[string]ItemSpec `yaml:"items,omitempty"`

	Agents     []AgentSpec     `yaml:"agents"`
	Containers []ContainerSpec `yaml:"containers,omitempty"`
	Shops      []ShopSpec      `yaml:"shops,omitempty"`
	NPCs       []NPCSpec       `yaml:"npcs,omitempty"`
	Obstacles  [][3]int        `yaml:"obstacles,omitempty"`
}

type ItemSpec struct {
	Slot  string `yaml:"slot"`
	Price int    `yaml:"price"`
}

type AgentSpec struct {
	ID        string         `yaml:"id"`
	Pos       [3]int         `yaml:"pos"`
	Coins     int            `yaml:"coins"`
	Inventory map[string]int `yaml:"inventory,omitempty"`
}

type ContainerSpec struct {
	ID        string         `yaml:"id"`
	Type      string         `yaml:"type"`
	Pos       [3]int         `yaml:"pos"`
	Capacity  int            `yaml:"capacity"`
	Inventory map[string]int `yaml:"inventory,omitempty"`
}

type ShopSpec struct {
	ID     string         `yaml:"id"`
	Pos    [3]int         `yaml:"pos"`
	Stock  map[string]int `yaml:"stock,omitempty"`
	Prices map[string]int `yaml:"prices,omitempty"`
}

type NPCSpec struct {
	ID    string              `yaml:"id"`
	Pos   [3]int              `yaml:"pos"`
	Nodes map[string]NodeSpec `yaml:"nodes"`
}

type NodeSpec struct {
	Text    string       `yaml:"text"`
	Options []OptionSpec `yaml:"options,omitempty"`
}

type OptionSpec struct {
	ID      string `yaml:"id"`
	Next    string `yaml:"next,omitempty"`
	SetFlag string `yaml:"set_flag,omitempty"`
}

// ActorSpec binds a plan to an agent. Loop restarts the plan after it
// finishes successfully.
type ActorSpec struct {
	ID    string     `yaml:"id"`
	Loop  bool       `yaml:"loop"`
	Steps []StepSpec `yaml:"steps"`
}

// StepSpec is one plan step. Which fields apply depends on Op.
type StepSpec struct {
	Op        string   `yaml:"op"`
	Target    string   `yaml:"target,omitempty"`
	Pos       *[3]int  `yaml:"pos,omitempty"`
	Tolerance float64  `yaml:"tolerance,omitempty"`
	Item      string   `yaml:"item,omitempty"`
	Count     int      `yaml:"count,omitempty"`
	All       bool     `yaml:"all,omitempty"`
	Slot      string   `yaml:"slot,omitempty"`
	Option    string   `yaml:"option,omitempty"`
	Options   []string `yaml:"options,omitempty"`
	Text      string   `yaml:"text,omitempty"`
	Ticks     int      `yaml:"ticks,omitempty"`
}

type TraceSpec struct {
	// Dir receives the zstd JSONL step trace; empty disables it.
	Dir string `yaml:"dir"`
	// DB is the SQLite index path; empty disables it.
	DB string `yaml:"db"`
}

type ObserverSpec struct {
	// Listen is the websocket listen address; empty disables the observer.
	Listen     string `yaml:"listen"`
	AllowInput bool   `yaml:"allow_input"`
}

func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		cfg := defaults()
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return defaults(), err
	}
	cfg, err := Parse(b)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates b against the schema, decodes it over the defaults and
// checks cross references.
func Parse(b []byte) (Config, error) {
	cfg := defaults()
	if err := validateSchema(b); err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		TickRateHz:          5,
		DefaultTimeoutTicks: script.DefaultTimeoutTicks,
		MaxTicks:            10000,
		World: WorldSpec{
			ID:               "default",
			BoundaryR:        4000,
			InteractRange:    2,
			MaxEvents:        256,
			SellBackPermille: 500,
		},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.World.ID = strings.TrimSpace(c.World.ID)
	if c.World.ID == "" {
		c.World.ID = "default"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 5
	}
	if c.DefaultTimeoutTicks <= 0 {
		c.DefaultTimeoutTicks = script.DefaultTimeoutTicks
	}
	for i := range c.Actors {
		c.Actors[i].ID = strings.TrimSpace(c.Actors[i].ID)
		for j := range c.Actors[i].Steps {
			st := &c.Actors[i].Steps[j]
			st.Op = strings.ToLower(strings.TrimSpace(st.Op))
			st.Slot = strings.ToUpper(strings.TrimSpace(st.Slot))
		}
	}
	c.Trace.Dir = strings.TrimSpace(c.Trace.Dir)
	c.Trace.DB = strings.TrimSpace(c.Trace.DB)
	c.Observer.Listen = strings.TrimSpace(c.Observer.Listen)
}
