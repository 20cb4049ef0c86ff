package mysql

import (
	"testing"
	"time"

	"storefront/domain/payment"
	"storefront/domain/refund"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionLedgerFirstRowWins(t *testing.T) {
	ledger := NewTransactionLedger(newTestDB(t))

	missing, err := ledger.FindByOrderID(testCtx(), 7)
	require.NoError(t, err)
	assert.Nil(t, missing)

	first := &payment.Transaction{OrderID: 7, Amount: dec("10.00"), Currency: "SGD", Status: payment.StatusCompleted, CaptureID: "CAP-1", Time: time.Now()}
	require.NoError(t, ledger.Create(testCtx(), first))
	assert.Positive(t, first.ID)
	require.NoError(t, ledger.Create(testCtx(), &payment.Transaction{OrderID: 7, Amount: dec("1.00"), Currency: "SGD", Status: payment.StatusCompleted, CaptureID: "CAP-2", Time: time.Now()}))

	found, err := ledger.FindByOrderID(testCtx(), 7)
	require.NoError(t, err)
	assert.Equal(t, "CAP-1", found.CaptureID)
	assert.Empty(t, found.RefundReason)

	require.NoError(t, ledger.UpdateStatusByOrderID(testCtx(), 7, payment.StatusRefunded, "damaged"))
	found, err = ledger.FindByOrderID(testCtx(), 7)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusRefunded, found.Status)
	assert.Equal(t, "damaged", found.RefundReason)
}

func TestNetsClaimOrderOnlyOnce(t *testing.T) {
	repo := NewNetsRepository(newTestDB(t))
	txn := &payment.NetsTransaction{UserID: 3, Amount: dec("5.40"), TxnRetrievalRef: "REF-1", Status: payment.NetsStatusPending}
	require.NoError(t, repo.Create(testCtx(), txn))

	got, err := repo.FindByRef(testCtx(), "REF-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Settled())

	network := 0
	claimed, err := repo.ClaimOrder(testCtx(), "REF-1", 11, payment.NetsCompletion{ResponseCode: "00", NetworkStatus: &network})
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.ClaimOrder(testCtx(), "REF-1", 12, payment.NetsCompletion{})
	require.NoError(t, err)
	assert.False(t, claimed)

	got, err = repo.FindByRef(testCtx(), "REF-1")
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.OrderID)
	assert.Equal(t, payment.NetsStatusSuccess, got.Status)
	assert.Equal(t, "00", got.ResponseCode)

	// 已关联订单的记录不会被标记失败
	require.NoError(t, repo.MarkFailed(testCtx(), "REF-1", "68", ""))
	got, err = repo.FindByRef(testCtx(), "REF-1")
	require.NoError(t, err)
	assert.Equal(t, payment.NetsStatusSuccess, got.Status)

	none, err := repo.FindByRef(testCtx(), "REF-404")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestRefundRequestUpsertResetsDecision(t *testing.T) {
	repo := NewRefundRequestRepository(newTestDB(t))

	require.NoError(t, repo.Upsert(testCtx(), 21, 4, "wrong item"))
	require.NoError(t, repo.MarkApproved(testCtx(), 21, 1, "ok"))

	req, err := repo.FindByOrderID(testCtx(), 21)
	require.NoError(t, err)
	assert.Equal(t, refund.RequestApproved, req.Status)
	assert.Equal(t, "ok", req.AdminNote)
	require.NotNil(t, req.ProcessedAt)

	require.NoError(t, repo.Upsert(testCtx(), 21, 4, "still wrong"))
	req, err = repo.FindByOrderID(testCtx(), 21)
	require.NoError(t, err)
	assert.Equal(t, refund.RequestRequested, req.Status)
	assert.Equal(t, "still wrong", req.Reason)
	assert.Empty(t, req.AdminNote)
	assert.Zero(t, req.AdminID)
	assert.Nil(t, req.ProcessedAt)

	byOrder, err := repo.FindByOrderIDs(testCtx(), []int64{21, 22})
	require.NoError(t, err)
	assert.Len(t, byOrder, 1)

	missing, err := repo.FindByOrderID(testCtx(), 22)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemberDirectory(t *testing.T) {
	db := newTestDB(t)
	dir := NewMemberDirectory(db)
	member := seedUser(t, db, "Hana", true)
	guest := seedUser(t, db, "Ian", false)

	ok, err := dir.IsMember(testCtx(), member)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = dir.IsMember(testCtx(), guest)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = dir.IsMember(testCtx(), 999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProductRepositoryAdjustStockClamps(t *testing.T) {
	db := newTestDB(t)
	repo := NewProductRepository(db)
	id := seedProduct(t, db, "Tofu", "1.80", 2)

	n, err := repo.AdjustStock(testCtx(), id, -5)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.AdjustStock(testCtx(), id, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	byID, err := repo.FindByIDs(testCtx(), []int64{id, 999})
	require.NoError(t, err)
	assert.Len(t, byID, 1)
}
