package factory

import (
	"fmt"

	"campus/config"
	"campus/pkg/payment/manual"
	"campus/pkg/payment/payhere"
	"campus/pkg/payment/types"
	"campus/pkg/storage"
)

// NewPaymentService 按渠道创建缴费服务
func NewPaymentService(provider types.Provider, repo types.Repository, ledger types.Reconciler, store *storage.ProofStore, notifier types.ReceiptNotifier) (types.Service, error) {
	switch provider {
	case types.ProviderPayhere:
		return payhere.NewService(config.Payhere(), repo, ledger, notifier), nil

	case types.ProviderManual:
		return manual.NewService(repo, ledger, store, notifier), nil

	default:
		return nil, fmt.Errorf("unsupported payment provider: %s", provider)
	}
}
