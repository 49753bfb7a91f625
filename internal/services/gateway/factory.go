package gateway

import (
	"context"
	"fmt"

	"pulacatraca/config"
)

// Factory creates gateway instances by provider type.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) CreateGateway(ctx context.Context, provider Provider, cfg any) (PaymentGateway, error) {
	switch provider {
	case ProviderPagBank:
		pbCfg, ok := cfg.(*config.PagBankConfig)
		if !ok {
			return nil, fmt.Errorf("gateway factory: pagbank requires *config.PagBankConfig, got %T", cfg)
		}
		return NewPagBankAdapter(ctx, pbCfg)

	case ProviderSandbox:
		return NewSandbox(), nil

	default:
		return nil, fmt.Errorf("gateway factory: unsupported provider %q", provider)
	}
}

func (f *Factory) GetSupportedProviders() []Provider {
	return []Provider{ProviderPagBank, ProviderSandbox}
}
