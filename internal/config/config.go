package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-smartorder/internal/logger"
	"github.com/rxtech-lab/argo-smartorder/internal/trading/engine"
	tradingprovider "github.com/rxtech-lab/argo-smartorder/internal/trading/provider"
	"github.com/rxtech-lab/argo-smartorder/internal/types"
	"github.com/rxtech-lab/argo-smartorder/internal/version"
	"github.com/rxtech-lab/argo-smartorder/pkg/errors"
	"github.com/rxtech-lab/argo-smartorder/pkg/schema"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	EnvAPIKey    = "ARGO_API_KEY"
	EnvSecretKey = "ARGO_SECRET_KEY"
)

var hundred = decimal.NewFromInt(100)

// ExchangeConfig selects the provider and carries its credentials.
type ExchangeConfig struct {
	Provider tradingprovider.ProviderType `json:"provider" yaml:"provider" validate:"required,oneof=binance-paper binance-live" jsonschema:"title=Provider,enum=binance-paper,enum=binance-live"`

	tradingprovider.BinanceProviderConfig `yaml:",inline"`
}

// TargetConfig is one price/size pair. Both accept absolute numbers or percentages.
type TargetConfig struct {
	Price types.Value `json:"price" yaml:"price" jsonschema:"description=Target price or offset from the market price"`
	Size  types.Value `json:"size" yaml:"size" jsonschema:"description=Quantity or percentage of the asset balance"`
}

// SectionConfig configures one leg of a trade.
type SectionConfig struct {
	Side              string         `json:"side,omitempty" yaml:"side,omitempty" validate:"omitempty,oneof=BUY SELL" jsonschema:"description=Overrides the side derived from the trade,enum=BUY,enum=SELL"`
	StopLossThreshold types.Value    `json:"stop_loss_threshold" yaml:"stop_loss_threshold"`
	PullbackThreshold types.Value    `json:"pullback_threshold" yaml:"pullback_threshold"`
	Targets           []TargetConfig `json:"targets" yaml:"targets" validate:"required,min=1,max=1,dive" jsonschema:"minItems=1,maxItems=1"`
}

// TradeConfig is one trade on a single symbol.
type TradeConfig struct {
	ID     string         `json:"id" yaml:"id" validate:"required"`
	Symbol string         `json:"symbol" yaml:"symbol" validate:"required"`
	Asset  string         `json:"asset" yaml:"asset" validate:"required" jsonschema:"description=Balance used to size percentage targets"`
	Side   string         `json:"side" yaml:"side" validate:"required,oneof=BUY SELL" jsonschema:"description=Side of the exit orders,enum=BUY,enum=SELL"`
	Entry  *SectionConfig `json:"entry,omitempty" yaml:"entry,omitempty"`
	Exit   *SectionConfig `json:"exit,omitempty" yaml:"exit,omitempty"`
}

// Config is the root of a trading configuration file.
type Config struct {
	// Version is the lowest binary version this file was written for.
	Version  string                    `json:"version,omitempty" yaml:"version,omitempty" jsonschema:"description=Minimum compatible binary version,example=0.1.0"`
	Exchange ExchangeConfig            `json:"exchange" yaml:"exchange"`
	Engine   engine.OrderHandlerConfig `json:"engine" yaml:"engine"`
	Logging  logger.Config             `json:"logging" yaml:"logging"`
	Trades   []TradeConfig             `json:"trades" yaml:"trades" validate:"required,min=1,dive"`
}

// Load reads a configuration file, fills credentials from the environment and validates it.
// When no env files are given an optional .env in the working directory is loaded.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to load env file", err)
		}
	} else {
		_ = godotenv.Load()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config %s", path)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes YAML without validating it. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	return &cfg, nil
}

// ApplyEnv fills empty credentials from ARGO_API_KEY and ARGO_SECRET_KEY.
func (c *Config) ApplyEnv() {
	if c.Exchange.ApiKey == "" {
		c.Exchange.ApiKey = os.Getenv(EnvAPIKey)
	}

	if c.Exchange.SecretKey == "" {
		c.Exchange.SecretKey = os.Getenv(EnvSecretKey)
	}
}

// Validate checks struct tags and the rules tags cannot express. Every problem is reported.
func (c *Config) Validate() error {
	var err error

	if verr := validator.New().Struct(c); verr != nil {
		err = multierr.Append(err, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid fields", verr))
	}

	if verr := version.CheckRequirement(version.GetVersion(), c.Version); verr != nil {
		err = multierr.Append(err, errors.Wrap(errors.ErrCodeInvalidConfiguration, "unsupported config version", verr))
	}

	seen := make(map[string]struct{}, len(c.Trades))

	for i, trade := range c.Trades {
		if _, ok := seen[trade.ID]; ok && trade.ID != "" {
			err = multierr.Append(err, errors.Newf(errors.ErrCodeInvalidConfiguration, "trades[%d]: duplicate trade id %q", i, trade.ID))
		}

		seen[trade.ID] = struct{}{}

		if trade.Entry == nil && trade.Exit == nil {
			err = multierr.Append(err, errors.Newf(errors.ErrCodeInvalidConfiguration, "trades[%d]: entry or exit is required", i))
		}

		err = multierr.Append(err, validateSection(fmt.Sprintf("trades[%d].entry", i), trade.Entry))
		err = multierr.Append(err, validateSection(fmt.Sprintf("trades[%d].exit", i), trade.Exit))
	}

	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	return nil
}

func validateSection(path string, section *SectionConfig) error {
	if section == nil {
		return nil
	}

	var err error

	// thresholds are distances; the sign is ignored
	if section.PullbackThreshold.IsZero() {
		err = multierr.Append(err, errors.Newf(errors.ErrCodeInvalidConfiguration, "%s: pullback_threshold must not be zero", path))
	}

	for i, target := range section.Targets {
		if !target.Size.Magnitude().IsPositive() {
			err = multierr.Append(err, errors.Newf(errors.ErrCodeInvalidConfiguration, "%s.targets[%d]: size must be positive", path, i))
		}

		if target.Size.IsRelative() && target.Size.Magnitude().GreaterThan(hundred) {
			err = multierr.Append(err, errors.Newf(errors.ErrCodeInvalidConfiguration, "%s.targets[%d]: size cannot exceed 100%%", path, i))
		}

		if target.Price.IsAbsolute() && !target.Price.Magnitude().IsPositive() {
			err = multierr.Append(err, errors.Newf(errors.ErrCodeInvalidConfiguration, "%s.targets[%d]: absolute price must be positive", path, i))
		}
	}

	return err
}

// ToTrades converts the configured trades into their runtime form.
func (c *Config) ToTrades() []*types.Trade {
	trades := make([]*types.Trade, 0, len(c.Trades))

	for _, tc := range c.Trades {
		trades = append(trades, &types.Trade{
			ID:     tc.ID,
			Symbol: tc.Symbol,
			Asset:  tc.Asset,
			Side:   types.Side(tc.Side),
			Entry:  tc.Entry.toSection(),
			Exit:   tc.Exit.toSection(),
		})
	}

	return trades
}

func (s *SectionConfig) toSection() *types.TradeSection {
	if s == nil {
		return nil
	}

	side := optional.None[types.Side]()
	if s.Side != "" {
		side = optional.Some(types.Side(s.Side))
	}

	targets := make([]*types.Target, 0, len(s.Targets))
	for _, t := range s.Targets {
		targets = append(targets, types.NewTarget(t.Price, t.Size))
	}

	return &types.TradeSection{
		Side:              side,
		StopLossThreshold: s.StopLossThreshold,
		PullbackThreshold: s.PullbackThreshold,
		Targets:           targets,
	}
}

// Schema returns the JSON schema of the configuration file.
func Schema() (string, error) {
	return schema.ToJSONSchema(Config{})
}
