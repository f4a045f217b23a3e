package factory

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus/app/repositories"
	"campus/pkg/ledger"
	"campus/pkg/payment/manual"
	"campus/pkg/payment/payhere"
	"campus/pkg/payment/types"
	"campus/pkg/storage"
)

// 工厂按渠道返回对应实现，未知渠道直接报错
func TestNewPaymentService_ProviderSwitch(t *testing.T) {
	repo := repositories.NewLedgerRepository()
	ledgerService := ledger.NewLedgerService(repositories.NewBatchRepository())
	store := storage.NewProofStoreWithFs(afero.NewMemMapFs(), "proofs")

	svc, err := NewPaymentService(types.ProviderPayhere, repo, ledgerService, store, nil)
	require.NoError(t, err)
	_, ok := svc.(*payhere.Service)
	assert.True(t, ok, "payhere provider should yield the gateway service")

	svc, err = NewPaymentService(types.ProviderManual, repo, ledgerService, store, nil)
	require.NoError(t, err)
	_, ok = svc.(*manual.Service)
	assert.True(t, ok, "manual provider should yield the offline service")

	_, err = NewPaymentService("alipay", repo, ledgerService, store, nil)
	assert.Error(t, err)
}
