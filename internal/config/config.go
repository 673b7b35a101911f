package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Strategy selector values accepted by trading.strategy.
const (
	StrategyConservative = "conservative"
	StrategyAggressive   = "aggressive"
	StrategyTimed        = "timed"
	StrategyMomentum     = "momentum"
)

// Config holds all configuration for the application.
type Config struct {
	Game      Game      `mapstructure:"game"`
	Trading   Trading   `mapstructure:"trading"`
	Gateway   Gateway   `mapstructure:"gateway"`
	Solana    Solana    `mapstructure:"solana"`
	Logger    Logger    `mapstructure:"logger"`
	Server    Server    `mapstructure:"server"`
	API       API       `mapstructure:"api"`
	Database  Database  `mapstructure:"database"`
	Telemetry Telemetry `mapstructure:"telemetry"`
}

// Game holds the round simulation parameters.
type Game struct {
	TickInterval int     `mapstructure:"tick_interval"` // milliseconds
	RugChance    float64 `mapstructure:"rug_chance"`    // probability per tick
	MaxTicks     int     `mapstructure:"max_ticks"`
	Growth       float64 `mapstructure:"growth"` // multiplier gained per tick
	Noise        float64 `mapstructure:"noise"`  // symmetric perturbation, 0.01 = ±1%
	EventBuffer  int     `mapstructure:"event_buffer"`
}

// Trading holds the configuration for the trading logic.
type Trading struct {
	Strategy         string  `mapstructure:"strategy"`
	MaxPositionSize  float64 `mapstructure:"max_position_size"`
	MaxLossThreshold float64 `mapstructure:"max_loss_threshold"` // percent
	CapitalFraction  float64 `mapstructure:"capital_fraction"`
	DustThreshold    float64 `mapstructure:"dust_threshold"`
	DryRun           bool    `mapstructure:"dry_run"`
	PaperBalance     float64 `mapstructure:"paper_balance"`
	ExitRetries      int     `mapstructure:"exit_retries"`
}

// Gateway holds the configuration for the remote execution gateway.
type Gateway struct {
	BaseURL        string  `mapstructure:"base_url"`
	ApiKey         string  `mapstructure:"apiKey"`
	SecretKey      string  `mapstructure:"secretKey"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	Timeout        int     `mapstructure:"timeout"` // seconds
}

// Solana holds the configuration for the on-chain balance lookup.
type Solana struct {
	RPCURL        string `mapstructure:"rpc_url"`
	WalletAddress string `mapstructure:"wallet_address"`
	Commitment    string `mapstructure:"commitment"`
}

// Server holds the configuration for the web UI server.
type Server struct {
	Port int `mapstructure:"port"`
}

// API holds the configuration for the trader's status API.
type API struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Telemetry holds the configuration for event reporting and tracing.
type Telemetry struct {
	BufferSize int    `mapstructure:"buffer_size"`
	Tracing    bool   `mapstructure:"tracing"`
	TraceFile  string `mapstructure:"trace_file"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ConfigurationError reports a missing or invalid setting. It is fatal at startup.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// legacyEnv maps config keys to the variable names used by earlier deployments.
var legacyEnv = map[string]string{
	"trading.strategy":           "BOT_TYPE",
	"trading.max_position_size":  "MAX_POSITION_SIZE",
	"trading.max_loss_threshold": "MAX_LOSS_THRESHOLD",
	"game.tick_interval":         "TICK_INTERVAL",
	"solana.rpc_url":             "SOLANA_RPC_URL",
	"solana.wallet_address":      "WALLET_ADDRESS",
	"logger.level":               "LOG_LEVEL",
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and environment still apply.
func LoadConfig(path string) (config Config, err error) {
	_ = godotenv.Load() // best-effort

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, legacy := range legacyEnv {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err = v.BindEnv(key, envKey, legacy); err != nil {
			return
		}
	}

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	config.Trading.Strategy = NormalizeStrategy(config.Trading.Strategy)
	err = config.Validate()
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("game.tick_interval", 250)
	v.SetDefault("game.rug_chance", 0.0005)
	v.SetDefault("game.max_ticks", 200)
	v.SetDefault("game.growth", 0.01)
	v.SetDefault("game.noise", 0.01)
	v.SetDefault("game.event_buffer", 64)

	v.SetDefault("trading.strategy", StrategyConservative)
	v.SetDefault("trading.max_position_size", 0.1)
	v.SetDefault("trading.max_loss_threshold", 10)
	v.SetDefault("trading.capital_fraction", 0.1)
	v.SetDefault("trading.dust_threshold", 0.001)
	v.SetDefault("trading.dry_run", true)
	v.SetDefault("trading.paper_balance", 1.0)
	v.SetDefault("trading.exit_retries", 3)

	v.SetDefault("gateway.rate_limit", 10)      // requests per second
	v.SetDefault("gateway.rate_limit_burst", 5) // burst size
	v.SetDefault("gateway.timeout", 10)

	v.SetDefault("solana.rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("solana.commitment", "confirmed")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("server.port", 8080)
	v.SetDefault("api.port", 8081)
	v.SetDefault("database.dsn", "rugs.db")
	v.SetDefault("telemetry.buffer_size", 1024)
}

// NormalizeStrategy lower-cases a selector and resolves the "timing" alias.
func NormalizeStrategy(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "timing" {
		return StrategyTimed
	}
	return name
}

// Validate checks every value the core consumes.
func (c *Config) Validate() error {
	switch c.Trading.Strategy {
	case StrategyConservative, StrategyAggressive, StrategyTimed, StrategyMomentum:
	default:
		return &ConfigurationError{Field: "trading.strategy", Reason: fmt.Sprintf("unknown strategy %q", c.Trading.Strategy)}
	}
	if c.Game.TickInterval <= 0 {
		return &ConfigurationError{Field: "game.tick_interval", Reason: "must be positive"}
	}
	if c.Game.RugChance < 0 || c.Game.RugChance >= 1 {
		return &ConfigurationError{Field: "game.rug_chance", Reason: "must be in [0, 1)"}
	}
	if c.Game.MaxTicks <= 0 {
		return &ConfigurationError{Field: "game.max_ticks", Reason: "must be positive"}
	}
	if c.Game.Growth < 0 {
		return &ConfigurationError{Field: "game.growth", Reason: "must not be negative"}
	}
	if c.Game.Noise < 0 || c.Game.Noise >= 1 {
		return &ConfigurationError{Field: "game.noise", Reason: "must be in [0, 1)"}
	}
	if c.Trading.MaxPositionSize <= 0 {
		return &ConfigurationError{Field: "trading.max_position_size", Reason: "must be positive"}
	}
	if c.Trading.MaxLossThreshold <= 0 {
		return &ConfigurationError{Field: "trading.max_loss_threshold", Reason: "must be positive"}
	}
	if c.Trading.CapitalFraction <= 0 || c.Trading.CapitalFraction > 1 {
		return &ConfigurationError{Field: "trading.capital_fraction", Reason: "must be in (0, 1]"}
	}
	if !c.Trading.DryRun {
		if c.Gateway.BaseURL == "" {
			return &ConfigurationError{Field: "gateway.base_url", Reason: "required when dry_run is disabled"}
		}
		if c.Gateway.ApiKey == "" || c.Gateway.SecretKey == "" {
			return &ConfigurationError{Field: "gateway.apiKey", Reason: "gateway credentials are required when dry_run is disabled"}
		}
	}
	return nil
}
