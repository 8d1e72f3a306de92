// Package config handles backtest run configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode selects the replay granularity of a run.
const (
	ModeBar  = "bar"
	ModeTick = "tick"
)

// Validation sentinels. Callers match them with errors.Is.
var (
	ErrMissingField = errors.New("config: missing required field")
	ErrInvalidField = errors.New("config: invalid field value")
)

// Config defines the structure for one backtest run.
type Config struct {
	Name        string   `yaml:"name"`
	Mode        string   `yaml:"mode"`
	StartDate   string   `yaml:"start_date"` // YYYYMMDD, first trading day
	EndDate     string   `yaml:"end_date"`   // YYYYMMDD, inclusive
	InitDays    int      `yaml:"init_days"`  // warm-up days replayed before trading starts
	InitCapital float64  `yaml:"init_capital"`
	UseMargin   FlexBool `yaml:"use_margin"`
	// PercentLimit caps capital occupancy as a percentage; breaches are
	// logged, never blocked.
	PercentLimit float64 `yaml:"percent_limit"`
	Seed         int64   `yaml:"seed"`
	Calendar     string  `yaml:"calendar"` // "futures" (20:00 rollover) or "day"
	Benchmark    string  `yaml:"benchmark"`
	OutputDir    string  `yaml:"output_dir"`

	Symbols    map[string]SymbolConf   `yaml:"symbols"`
	Strategies map[string]StrategyConf `yaml:"strategies"`

	DBConnStr string `yaml:"-"` // loaded from env
	LogLevel  string `yaml:"-"` // loaded from env or defaults
}

// SymbolConf holds per-symbol data sources and cost parameters.
type SymbolConf struct {
	BarFile  string `yaml:"bar_file"`
	TickFile string `yaml:"tick_file"`
	// BarInterval is the bar duration, e.g. "1m". Bar timestamps in data
	// files mark the bar end and are shifted back by this interval.
	BarInterval string `yaml:"bar_interval"`

	Size            float64 `yaml:"size"`
	PriceTick       float64 `yaml:"price_tick"`
	CommissionRate  float64 `yaml:"commission_rate"`
	FixedCommission float64 `yaml:"fixed_commission"`
	Slippage        float64 `yaml:"slippage"`
	MarginRate      float64 `yaml:"margin_rate"`
}

// StrategyConf declares one strategy instance: its registered type, the
// symbol it subscribes to and its numeric parameters.
type StrategyConf struct {
	Type   string             `yaml:"type"`
	Symbol string             `yaml:"symbol"`
	Params map[string]float64 `yaml:"params"`
}

// LoadConfig loads configuration from the specified YAML file path and
// environment variables, applies defaults and validates the result.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{
		// Default values
		Mode:     ModeBar,
		Calendar: "futures",
		LogLevel: "info",
	}

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(file, cfg); err != nil {
		return nil, err
	}

	// Overrides from environment variables
	if dsn := os.Getenv("BACKTEST_DB_CONN"); dsn != "" {
		cfg.DBConnStr = dsn
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeBar
	}
	if c.Calendar == "" {
		c.Calendar = "futures"
	}
	if c.InitCapital == 0 {
		c.InitCapital = 1_000_000
	}
	for name, sc := range c.Symbols {
		if sc.Size == 0 {
			sc.Size = 10
		}
		if sc.PriceTick == 0 {
			sc.PriceTick = 1
		}
		if sc.MarginRate == 0 {
			sc.MarginRate = 0.1
		}
		if sc.BarInterval == "" {
			sc.BarInterval = "1m"
		}
		c.Symbols[name] = sc
	}
}

// Validate checks the configuration for completeness and consistency.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name", ErrMissingField)
	}
	if c.Mode != ModeBar && c.Mode != ModeTick {
		return fmt.Errorf("%w: mode %q", ErrInvalidField, c.Mode)
	}
	if _, err := c.parseDate(c.StartDate); err != nil {
		return fmt.Errorf("%w: start_date %q", ErrInvalidField, c.StartDate)
	}
	if c.EndDate != "" {
		if _, err := c.parseDate(c.EndDate); err != nil {
			return fmt.Errorf("%w: end_date %q", ErrInvalidField, c.EndDate)
		}
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("%w: symbols", ErrMissingField)
	}
	for name, sc := range c.Symbols {
		switch c.Mode {
		case ModeBar:
			if sc.BarFile == "" {
				return fmt.Errorf("%w: symbols.%s.bar_file", ErrMissingField, name)
			}
			if _, err := time.ParseDuration(sc.BarInterval); err != nil {
				return fmt.Errorf("%w: symbols.%s.bar_interval %q", ErrInvalidField, name, sc.BarInterval)
			}
		case ModeTick:
			if sc.TickFile == "" {
				return fmt.Errorf("%w: symbols.%s.tick_file", ErrMissingField, name)
			}
		}
		if sc.PriceTick < 0 || sc.Size < 0 || sc.MarginRate < 0 {
			return fmt.Errorf("%w: symbols.%s cost parameters must be non-negative", ErrInvalidField, name)
		}
	}
	for name, st := range c.Strategies {
		if st.Type == "" {
			return fmt.Errorf("%w: strategies.%s.type", ErrMissingField, name)
		}
		if st.Symbol == "" {
			return fmt.Errorf("%w: strategies.%s.symbol", ErrMissingField, name)
		}
	}
	if c.PercentLimit < 0 || c.PercentLimit > 100 {
		return fmt.Errorf("%w: percent_limit %v", ErrInvalidField, c.PercentLimit)
	}
	return nil
}

func (c *Config) parseDate(s string) (time.Time, error) {
	return time.Parse("20060102", s)
}

// Start returns the first trading day of the run.
func (c *Config) Start() time.Time {
	t, _ := c.parseDate(c.StartDate)
	return t
}

// End returns the inclusive end of the run, or the zero time when the run
// extends to the end of the data.
func (c *Config) End() time.Time {
	if c.EndDate == "" {
		return time.Time{}
	}
	t, _ := c.parseDate(c.EndDate)
	return t.Add(24*time.Hour - time.Nanosecond)
}

// DataStart returns the start of the warm-up window preceding Start.
func (c *Config) DataStart() time.Time {
	return c.Start().AddDate(0, 0, -c.InitDays)
}

// Symbol returns the configuration for one symbol, falling back to zero-cost
// defaults for symbols that only appear as spread legs.
func (c *Config) Symbol(name string) SymbolConf {
	if sc, ok := c.Symbols[name]; ok {
		return sc
	}
	return SymbolConf{Size: 10, PriceTick: 1, MarginRate: 0.1, BarInterval: "1m"}
}

// Interval returns the parsed bar interval for one symbol.
func (sc SymbolConf) Interval() time.Duration {
	d, err := time.ParseDuration(sc.BarInterval)
	if err != nil {
		return time.Minute
	}
	return d
}
