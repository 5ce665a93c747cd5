package tradingprovider

import (
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-smartorder/pkg/errors"
)

// BinanceProviderConfig contains configuration for Binance trading.
type BinanceProviderConfig struct {
	ApiKey    string `json:"apiKey" yaml:"api_key" jsonschema:"title=API Key,description=Binance API key" validate:"required"`
	SecretKey string `json:"secretKey" yaml:"secret_key" jsonschema:"title=Secret Key,description=Binance API secret key" validate:"required"`
	BaseURL   string `json:"baseUrl,omitempty" yaml:"base_url" jsonschema:"title=Base URL,description=Overrides the REST endpoint" validate:"omitempty,url"`
}

// Validate validates the BinanceProviderConfig struct.
func (c *BinanceProviderConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid binance provider config", err)
	}

	return nil
}
