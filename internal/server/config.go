package server

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the complete server configuration
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Game   GameSettings   `hcl:"game,block"`
	LLM    LLMSettings    `hcl:"llm,block"`
}

// ServerSettings contains the HTTP-level configuration
type ServerSettings struct {
	Address        string   `hcl:"address,optional"`
	Port           int      `hcl:"port,optional"`
	LogLevel       string   `hcl:"log_level,optional"`
	DatabasePath   string   `hcl:"database_path,optional"`
	JWTSecret      string   `hcl:"jwt_secret,optional"`
	AllowedOrigins []string `hcl:"allowed_origins,optional"`
}

// GameSettings are the table defaults applied when a new_game message
// leaves them unset
type GameSettings struct {
	SmallBlind   int    `hcl:"small_blind,optional"`
	BigBlind     int    `hcl:"big_blind,optional"`
	InitialStack int    `hcl:"initial_stack,optional"`
	MaxRounds    int    `hcl:"max_rounds,optional"`
	NumBots      int    `hcl:"num_bots,optional"`
	Difficulty   string `hcl:"difficulty,optional"`
}

// LLMSettings are the environment-tier model credentials, the last resort
// when neither the session nor the user supplies a key
type LLMSettings struct {
	Provider string `hcl:"provider,optional"`
	APIKey   string `hcl:"api_key,optional"`
	Model    string `hcl:"model,optional"`
}

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:      "localhost",
			Port:         8080,
			LogLevel:     "info",
			DatabasePath: "holdem.db",
		},
		Game: GameSettings{
			SmallBlind:   10,
			BigBlind:     20,
			InitialStack: 1000,
			MaxRounds:    100,
			NumBots:      3,
			Difficulty:   "medium",
		},
	}
}

// LoadConfig reads an HCL config file, falling back to defaults when the
// file does not exist. The environment overrides the file for secrets and
// deployment paths: HOLDEM_JWT_SECRET, HOLDEM_LLM_API_KEY,
// HOLDEM_LLM_PROVIDER and HOLDEM_DATABASE_PATH.
func LoadConfig(filename string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(filename); err == nil {
		parser := hclparse.NewParser()
		file, diags := parser.ParseHCLFile(filename)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parsing config: %s", diags.Error())
		}
		if diags := gohcl.DecodeBody(file.Body, nil, config); diags.HasErrors() {
			return nil, fmt.Errorf("decoding config: %s", diags.Error())
		}
	}

	applyDefaults(config)

	if secret := os.Getenv("HOLDEM_JWT_SECRET"); secret != "" {
		config.Server.JWTSecret = secret
	}
	if key := os.Getenv("HOLDEM_LLM_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if provider := os.Getenv("HOLDEM_LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = provider
	}
	if path := os.Getenv("HOLDEM_DATABASE_PATH"); path != "" {
		config.Server.DatabasePath = path
	}

	return config, nil
}

func applyDefaults(config *Config) {
	def := DefaultConfig()
	if config.Server.Address == "" {
		config.Server.Address = def.Server.Address
	}
	if config.Server.Port == 0 {
		config.Server.Port = def.Server.Port
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = def.Server.LogLevel
	}
	if config.Server.DatabasePath == "" {
		config.Server.DatabasePath = def.Server.DatabasePath
	}
	if config.Game.SmallBlind == 0 {
		config.Game.SmallBlind = def.Game.SmallBlind
	}
	if config.Game.BigBlind == 0 {
		config.Game.BigBlind = def.Game.BigBlind
	}
	if config.Game.InitialStack == 0 {
		config.Game.InitialStack = def.Game.InitialStack
	}
	if config.Game.MaxRounds == 0 {
		config.Game.MaxRounds = def.Game.MaxRounds
	}
	if config.Game.NumBots == 0 {
		config.Game.NumBots = def.Game.NumBots
	}
	if config.Game.Difficulty == "" {
		config.Game.Difficulty = def.Game.Difficulty
	}
}
