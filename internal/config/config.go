// Package config loads and validates runtime configuration.
// Values come from config.yaml in the working directory (or a path given
// explicitly), with CWS_-prefixed environment variables taking precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LLMMode selects how the gateway maps task tags to endpoints.
type LLMMode string

const (
	// ModeSingle sends every task to the primary model.
	ModeSingle LLMMode = "single"
	// ModeFastSlow routes fast-tagged tasks (nickname, backstory, story)
	// to the fast model and the rest to the primary model.
	ModeFastSlow LLMMode = "fast_slow"
)

// Config is the full runtime configuration tree.
type Config struct {
	Game   Game
	Social Social
	AI     AI
	LLM    LLM
	Paths  Paths
	System System
}

type Game struct {
	InitNPCNum               int     `mapstructure:"init_npc_num"`
	SectNum                  int     `mapstructure:"sect_num"`
	NPCAwakeningRatePerMonth float64 `mapstructure:"npc_awakening_rate_per_month"`
	StartYear                int     `mapstructure:"start_year"`
	WorldHistory             string  `mapstructure:"world_history"`
	MaxActionRoundsPerTurn   int     `mapstructure:"max_action_rounds_per_turn"`
	FortuneProbability       float64 `mapstructure:"fortune_probability"`
	MisfortuneProbability    float64 `mapstructure:"misfortune_probability"`
	LongDeadCleanupYears     int     `mapstructure:"long_dead_cleanup_years"`
}

type Social struct {
	RelationCheckThreshold int `mapstructure:"relation_check_threshold"`
	MajorEventContextNum   int `mapstructure:"major_event_context_num"`
	MinorEventContextNum   int `mapstructure:"minor_event_context_num"`
}

type AI struct {
	MaxConcurrentRequests int `mapstructure:"max_concurrent_requests"`
}

type LLM struct {
	BaseURL       string  `mapstructure:"base_url"`
	Key           string  `mapstructure:"key"`
	ModelName     string  `mapstructure:"model_name"`
	FastModelName string  `mapstructure:"fast_model_name"`
	Mode          LLMMode `mapstructure:"mode"`
}

type Paths struct {
	Saves       string `mapstructure:"saves"`
	Templates   string `mapstructure:"templates"`
	GameConfigs string `mapstructure:"game_configs"`
}

type System struct {
	Language string `mapstructure:"language"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
}

// SupportedLanguages are the locale tags static data can be loaded in.
var SupportedLanguages = []string{"zh-CN", "en-US"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("game.init_npc_num", 50)
	v.SetDefault("game.sect_num", 5)
	v.SetDefault("game.npc_awakening_rate_per_month", 0.1)
	v.SetDefault("game.start_year", 100)
	v.SetDefault("game.world_history", "")
	v.SetDefault("game.max_action_rounds_per_turn", 3)
	v.SetDefault("game.fortune_probability", 0.02)
	v.SetDefault("game.misfortune_probability", 0.01)
	v.SetDefault("game.long_dead_cleanup_years", 10)

	v.SetDefault("social.relation_check_threshold", 3)
	v.SetDefault("social.major_event_context_num", 10)
	v.SetDefault("social.minor_event_context_num", 20)

	v.SetDefault("ai.max_concurrent_requests", 8)

	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.key", "")
	v.SetDefault("llm.model_name", "")
	v.SetDefault("llm.fast_model_name", "")
	v.SetDefault("llm.mode", string(ModeSingle))

	v.SetDefault("paths.saves", "saves")
	v.SetDefault("paths.templates", "templates")
	v.SetDefault("paths.game_configs", "game_configs")

	v.SetDefault("system.language", "zh-CN")
	v.SetDefault("system.host", "127.0.0.1")
	v.SetDefault("system.port", 8080)
}

// Load reads configuration from the given file (optional) and the
// environment, applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CWS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		// Without an explicit path, a missing file is fine; defaults plus
		// env carry the run. Anything else is a malformed file.
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the value constraints the engine depends on.
func (c *Config) Validate() error {
	if c.Game.InitNPCNum < 0 {
		return fmt.Errorf("config: game.init_npc_num must be >= 0, got %d", c.Game.InitNPCNum)
	}
	if c.Game.NPCAwakeningRatePerMonth < 0 || c.Game.NPCAwakeningRatePerMonth > 1 {
		return fmt.Errorf("config: game.npc_awakening_rate_per_month must be in [0,1], got %g", c.Game.NPCAwakeningRatePerMonth)
	}
	if c.Game.MaxActionRoundsPerTurn < 1 {
		return fmt.Errorf("config: game.max_action_rounds_per_turn must be >= 1, got %d", c.Game.MaxActionRoundsPerTurn)
	}
	if c.Game.FortuneProbability < 0 || c.Game.FortuneProbability > 1 {
		return fmt.Errorf("config: game.fortune_probability must be in [0,1], got %g", c.Game.FortuneProbability)
	}
	if c.Game.MisfortuneProbability < 0 || c.Game.MisfortuneProbability > 1 {
		return fmt.Errorf("config: game.misfortune_probability must be in [0,1], got %g", c.Game.MisfortuneProbability)
	}
	if c.AI.MaxConcurrentRequests < 1 {
		return fmt.Errorf("config: ai.max_concurrent_requests must be >= 1, got %d", c.AI.MaxConcurrentRequests)
	}
	switch c.LLM.Mode {
	case ModeSingle, ModeFastSlow:
	default:
		return fmt.Errorf("config: llm.mode must be one of single|fast_slow, got %q", c.LLM.Mode)
	}
	langOK := false
	for _, l := range SupportedLanguages {
		if c.System.Language == l {
			langOK = true
			break
		}
	}
	if !langOK {
		return fmt.Errorf("config: system.language %q not supported (want one of %v)", c.System.Language, SupportedLanguages)
	}
	if c.System.Port <= 0 || c.System.Port > 65535 {
		return fmt.Errorf("config: system.port out of range: %d", c.System.Port)
	}
	return nil
}

// LLMConfigured reports whether the gateway has enough to make calls.
func (c *Config) LLMConfigured() bool {
	return c.LLM.BaseURL != "" && c.LLM.ModelName != ""
}
