package mocks

//go:generate mockgen -destination=./mock_exchange.go -package=mocks github.com/rxtech-lab/argo-smartorder/internal/trading/provider ExchangeAdapter
