package store

import (
	"os"
	"strings"

	"algo-trading-bot/internal/ledger"
	"algo-trading-bot/internal/market"
	"algo-trading-bot/internal/risk"
	"algo-trading-bot/internal/strategy"
	"algo-trading-bot/internal/types"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yaml"

type ExchangeConfig struct {
	Name    string  `yaml:"name"`
	Testnet bool    `yaml:"testnet"`
	Segment string  `yaml:"segment"`  // kite exchange for bare symbols, e.g. NSE
	Product string  `yaml:"product"`  // kite product, e.g. CNC
	DataDir string  `yaml:"data_dir"` // csv feed
	Seed    int64   `yaml:"seed"`     // simulated feed
	FeeRate float64 `yaml:"fee_rate"`
}

type StrategyConfig struct {
	Name   string          `yaml:"name"`
	Params strategy.Params `yaml:"params"`
}

type RiskConfig struct {
	StopLossPct   float64                    `yaml:"stop_loss_pct"`
	TakeProfitPct float64                    `yaml:"take_profit_pct"`
	Instrument    risk.Instrument            `yaml:"instrument"`
	PerSymbol     map[string]risk.Instrument `yaml:"per_symbol"`
}

type EngineConfig struct {
	PollSeconds       int  `yaml:"poll_seconds"` // 0 aligns cycles to the timeframe
	CandleMargin      int  `yaml:"candle_margin"`
	MaxParallel       int  `yaml:"max_parallel"`
	FlattenOnShutdown bool `yaml:"flatten_on_shutdown"`
}

type JournalConfig struct {
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

type Config struct {
	Mode        string             `yaml:"mode"`
	RiskLevel   int                `yaml:"risk_level"`
	Exchange    ExchangeConfig     `yaml:"exchange"`
	Symbols     []string           `yaml:"symbols"`
	Timeframe   string             `yaml:"timeframe"`
	HistoryDays int                `yaml:"history_days"`
	Strategy    StrategyConfig     `yaml:"strategy"`
	Paper       ledger.PaperConfig `yaml:"paper"`
	Risk        RiskConfig         `yaml:"risk"`
	Engine      EngineConfig       `yaml:"engine"`
	Journal     JournalConfig      `yaml:"journal"`
	LogLevel    string             `yaml:"log_level"`
}

func Default() Config {
	return Config{
		Mode:        ledger.ModePaper,
		RiskLevel:   1,
		Exchange:    ExchangeConfig{Name: market.Simulated, Testnet: true, FeeRate: 0.001},
		Symbols:     []string{"BTC/USDT", "ETH/USDT"},
		Timeframe:   "1h",
		HistoryDays: 30,
		Strategy:    StrategyConfig{Name: strategy.Momentum},
		Paper:       ledger.DefaultPaperConfig(),
		Risk: RiskConfig{
			StopLossPct:   risk.DefaultStopLossPct,
			TakeProfitPct: risk.DefaultTakeProfitPct,
			Instrument:    risk.Instrument{Step: 0.0001, Tick: 0.01, MinNotional: 10},
		},
		Engine:  EngineConfig{CandleMargin: 50, MaxParallel: 4},
		Journal: JournalConfig{RetentionDays: 7},
	}
}

func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.Wrapf(types.ErrConfigurationInvalid, format, args...)
	}

	if c.Mode != ledger.ModePaper && c.Mode != ledger.ModeLive {
		return invalid("invalid mode '%s': must be 'paper' or 'live'", c.Mode)
	}
	if _, err := risk.NewProfile(c.RiskLevel, c.Risk.StopLossPct, c.Risk.TakeProfitPct); err != nil {
		return err
	}
	if len(c.Symbols) == 0 {
		return invalid("symbols cannot be empty")
	}
	seen := make(map[string]bool, len(c.Symbols))
	for _, s := range c.Symbols {
		if strings.TrimSpace(s) == "" {
			return invalid("blank symbol")
		}
		if seen[s] {
			return invalid("duplicate symbol %s", s)
		}
		seen[s] = true
	}
	if _, err := types.ParseTimeframe(c.Timeframe); err != nil {
		return err
	}
	if c.HistoryDays <= 0 {
		return invalid("history_days must be positive, got %d", c.HistoryDays)
	}
	if _, err := strategy.New(c.Strategy.Name, c.Strategy.Params); err != nil {
		return err
	}
	if err := c.Paper.Validate(); err != nil {
		return err
	}

	known := false
	for _, n := range market.Names() {
		known = known || strings.EqualFold(n, c.Exchange.Name)
	}
	if !known {
		return invalid("unknown exchange '%s'", c.Exchange.Name)
	}
	if c.Mode == ledger.ModeLive && strings.EqualFold(c.Exchange.Name, market.CSV) {
		return invalid("live mode cannot trade through the csv feed")
	}
	if c.Exchange.FeeRate < 0 {
		return invalid("exchange.fee_rate must not be negative")
	}
	if c.Engine.PollSeconds < 0 || c.Engine.CandleMargin < 0 || c.Engine.MaxParallel < 0 {
		return invalid("engine settings must not be negative")
	}
	return nil
}

// Path returns CONFIG_FILE when set.
func Path() string {
	if v := os.Getenv("CONFIG_FILE"); v != "" {
		return v
	}
	return DefaultPath
}

// LoadConfig reads path over Default(), so omitted keys keep their defaults.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	c := Default()
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, errors.Wrapf(types.ErrConfigurationInvalid, "parse %s: %v", path, err)
	}
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))

	if err := c.Validate(); err != nil {
		return nil, errors.WithMessage(err, "config validation failed")
	}

	return &c, nil
}

// Credentials returns the Kite API key and access token from the
// environment (.env is loaded by the commands).
func (c *Config) Credentials() (apiKey, accessToken string) {
	return os.Getenv("KITE_API_KEY"), os.Getenv("KITE_ACCESS_TOKEN")
}

// MarketParams maps the exchange section onto market.Params.
func (c *Config) MarketParams() market.Params {
	key, token := c.Credentials()
	return market.Params{
		Name:        c.Exchange.Name,
		Testnet:     c.Exchange.Testnet,
		APIKey:      key,
		AccessToken: token,
		Exchange:    c.Exchange.Segment,
		Product:     c.Exchange.Product,
		FeeRate:     c.Exchange.FeeRate,
		DataDir:     c.Exchange.DataDir,
		Seed:        c.Exchange.Seed,
		Balance:     c.Paper.InitialBalance,
	}
}

// Profile builds the risk profile; call after Validate.
func (c *Config) Profile() (risk.Profile, error) {
	return risk.NewProfile(c.RiskLevel, c.Risk.StopLossPct, c.Risk.TakeProfitPct)
}
