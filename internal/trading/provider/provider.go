package tradingprovider

import (
	"fmt"
	"sort"

	"github.com/rxtech-lab/argo-smartorder/pkg/schema"
)

type ProviderType string

const (
	ProviderBinancePaper ProviderType = "binance-paper"
	ProviderBinanceLive  ProviderType = "binance-live"
)

type ProviderInfo struct {
	Name           string `json:"name"`
	DisplayName    string `json:"displayName"`
	Description    string `json:"description"`
	IsPaperTrading bool   `json:"isPaperTrading"`
}

var providerRegistry = map[ProviderType]ProviderInfo{
	ProviderBinancePaper: {
		Name:           string(ProviderBinancePaper),
		DisplayName:    "Binance Testnet",
		Description:    "Binance testnet for paper trading cryptocurrency without real funds",
		IsPaperTrading: true,
	},
	ProviderBinanceLive: {
		Name:           string(ProviderBinanceLive),
		DisplayName:    "Binance Live",
		Description:    "Binance live environment for real-funds cryptocurrency trading",
		IsPaperTrading: false,
	},
}

// GetSupportedProviders returns the provider names in sorted order.
func GetSupportedProviders() []string {
	providers := make([]string, 0, len(providerRegistry))
	for providerType := range providerRegistry {
		providers = append(providers, string(providerType))
	}

	sort.Strings(providers)

	return providers
}

// GetProviderInfo returns metadata for a specific trading provider.
func GetProviderInfo(providerName string) (ProviderInfo, error) {
	info, exists := providerRegistry[ProviderType(providerName)]
	if !exists {
		return ProviderInfo{}, fmt.Errorf("unsupported trading provider: %s", providerName)
	}

	return info, nil
}

// GetProviderConfigSchema returns the JSON schema for a provider's configuration.
func GetProviderConfigSchema(providerName string) (string, error) {
	switch ProviderType(providerName) {
	case ProviderBinancePaper, ProviderBinanceLive:
		return schema.ToJSONSchema(BinanceProviderConfig{
			ApiKey:    "",
			SecretKey: "",
			BaseURL:   "",
		})
	default:
		return "", fmt.Errorf("unsupported trading provider: %s", providerName)
	}
}

// NewExchange creates the exchange adapter for a provider type.
func NewExchange(providerType ProviderType, config BinanceProviderConfig) (ExchangeAdapter, error) {
	switch providerType {
	case ProviderBinancePaper:
		return NewBinanceExchange(config, true)
	case ProviderBinanceLive:
		return NewBinanceExchange(config, false)
	default:
		return nil, fmt.Errorf("unsupported trading provider: %s", providerType)
	}
}
