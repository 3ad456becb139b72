// Package config loads the platform configuration from an HCL file:
// server settings, the token registry, one block per game, and the
// loyalty ratios.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config represents the complete platform configuration
type Config struct {
	Server  ServerSettings  `hcl:"server,block"`
	Tokens  []TokenConfig   `hcl:"token,block"`
	Games   []GameConfig    `hcl:"game,block"`
	Loyalty []LoyaltyConfig `hcl:"loyalty,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address     string `hcl:"address,optional"`
	Port        int    `hcl:"port,optional"`
	LogLevel    string `hcl:"log_level,optional"`
	LogFile     string `hcl:"log_file,optional"`
	CEO         string `hcl:"ceo"`
	Worker      string `hcl:"worker,optional"`
	WorkerToken string `hcl:"worker_token,optional"`
}

// TokenConfig registers one settlement currency
type TokenConfig struct {
	Name    string `hcl:"name,label"`
	Address string `hcl:"address"`
}

// GameConfig defines one game engine
type GameConfig struct {
	Name          string   `hcl:"name,label"`
	Kind          string   `hcl:"kind"`
	MaxBet        uint64   `hcl:"max_bet,optional"`
	MaxSquareBet  uint64   `hcl:"max_square_bet,optional"`
	MaxBetCount   int      `hcl:"max_bet_count,optional"`
	RoundInterval string   `hcl:"round_interval,optional"`
	Factors       []uint64 `hcl:"factors,optional"`
	FeePercent    uint64   `hcl:"fee_percent,optional"`
}

// LoyaltyConfig sets the point accrual rate for a (token, game) pair
type LoyaltyConfig struct {
	Token string `hcl:"token,label"`
	Game  string `hcl:"game,label"`
	Ratio uint64 `hcl:"ratio"`
}

// Game kinds recognized by the server.
const (
	KindRoulette   = "roulette"
	KindSlots      = "slots"
	KindBackgammon = "backgammon"
)

// Default returns the default platform configuration
func Default() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
			LogFile:  "treasury-server.log",
			CEO:      "ceo",
		},
		Tokens: []TokenConfig{
			{Name: "DAI", Address: "0xdai"},
		},
		Games: []GameConfig{
			{Name: "roulette", Kind: KindRoulette, MaxBet: 5000, MaxSquareBet: 4000, MaxBetCount: 36, RoundInterval: "1m"},
			{Name: "slots", Kind: KindSlots, MaxBet: 1000, Factors: []uint64{250, 15, 8, 4}},
			{Name: "backgammon", Kind: KindBackgammon, MaxBet: 1000, FeePercent: 10},
		},
	}
}

// Load reads configuration from an HCL file, falling back to defaults when
// the file does not exist.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults()
	return &config, nil
}

// Parse decodes configuration from in-memory HCL, mainly for tests.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.LogFile == "" {
		c.Server.LogFile = "treasury-server.log"
	}
	if c.Server.Worker == "" {
		c.Server.Worker = c.Server.CEO
	}

	for i := range c.Games {
		g := &c.Games[i]
		if g.MaxBet == 0 {
			g.MaxBet = 1000
		}
		switch g.Kind {
		case KindRoulette:
			if g.MaxSquareBet == 0 {
				g.MaxSquareBet = 4000
			}
			if g.MaxBetCount == 0 {
				g.MaxBetCount = 36
			}
			if g.RoundInterval == "" {
				g.RoundInterval = "1m"
			}
		case KindSlots:
			if len(g.Factors) == 0 {
				g.Factors = []uint64{250, 15, 8, 4}
			}
		case KindBackgammon:
			if g.FeePercent == 0 {
				g.FeePercent = 10
			}
		}
	}
}

// Validate validates the platform configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.CEO == "" {
		return fmt.Errorf("server: ceo address is required")
	}
	if len(c.Tokens) == 0 {
		return fmt.Errorf("at least one token must be configured")
	}
	if len(c.Games) == 0 {
		return fmt.Errorf("at least one game must be configured")
	}

	tokens := make(map[string]bool, len(c.Tokens))
	for _, t := range c.Tokens {
		if t.Address == "" {
			return fmt.Errorf("token %s: address is required", t.Name)
		}
		tokens[t.Name] = true
	}

	games := make(map[string]bool, len(c.Games))
	for _, g := range c.Games {
		switch g.Kind {
		case KindRoulette:
			if g.RoundInterval != "" {
				if _, err := time.ParseDuration(g.RoundInterval); err != nil {
					return fmt.Errorf("game %s: invalid round_interval: %w", g.Name, err)
				}
			}
		case KindSlots:
			if len(g.Factors) != 4 {
				return fmt.Errorf("game %s: slots needs exactly 4 factors", g.Name)
			}
			for i := 1; i < len(g.Factors); i++ {
				if g.Factors[i] >= g.Factors[i-1] {
					return fmt.Errorf("game %s: factors must be strictly descending", g.Name)
				}
			}
		case KindBackgammon:
			if g.FeePercent >= 100 {
				return fmt.Errorf("game %s: fee_percent must be below 100", g.Name)
			}
		default:
			return fmt.Errorf("game %s: unknown kind %q", g.Name, g.Kind)
		}
		games[g.Name] = true
	}

	for _, l := range c.Loyalty {
		if !tokens[l.Token] {
			return fmt.Errorf("loyalty %s/%s: unknown token", l.Token, l.Game)
		}
		if !games[l.Game] {
			return fmt.Errorf("loyalty %s/%s: unknown game", l.Token, l.Game)
		}
	}
	return nil
}

// ServerAddress returns the full listen address
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// GameByName returns a game configuration by name
func (c *Config) GameByName(name string) *GameConfig {
	for i := range c.Games {
		if c.Games[i].Name == name {
			return &c.Games[i]
		}
	}
	return nil
}

// Interval returns the parsed round interval for a roulette game.
func (g *GameConfig) Interval() time.Duration {
	d, err := time.ParseDuration(g.RoundInterval)
	if err != nil {
		return time.Minute
	}
	return d
}
