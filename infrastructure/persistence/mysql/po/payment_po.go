package po

import (
	"time"

	"storefront/domain/payment"

	"github.com/shopspring/decimal"
)

// TransactionPO 网关交易记录；order_id 不唯一，查询取第一条
type TransactionPO struct {
	ID           int64           `gorm:"primaryKey;autoIncrement"`
	OrderID      int64           `gorm:"index;not null"`
	PayerID      string          `gorm:"size:128"`
	PayerEmail   string          `gorm:"size:255"`
	Amount       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Currency     string          `gorm:"size:3;not null"`
	Status       string          `gorm:"size:32;not null"`
	CaptureID    *string         `gorm:"size:128"`
	RefundReason *string         `gorm:"size:255"`
	Time         time.Time       `gorm:"not null"`
}

func (TransactionPO) TableName() string {
	return "transactions"
}

func FromTransactionDomain(tx *payment.Transaction) *TransactionPO {
	return &TransactionPO{
		ID:           tx.ID,
		OrderID:      tx.OrderID,
		PayerID:      tx.PayerID,
		PayerEmail:   tx.PayerEmail,
		Amount:       tx.Amount,
		Currency:     tx.Currency,
		Status:       tx.Status,
		CaptureID:    nullable(tx.CaptureID),
		RefundReason: nullable(tx.RefundReason),
		Time:         tx.Time,
	}
}

func (p *TransactionPO) ToDomain() *payment.Transaction {
	return &payment.Transaction{
		ID:           p.ID,
		OrderID:      p.OrderID,
		PayerID:      p.PayerID,
		PayerEmail:   p.PayerEmail,
		Amount:       p.Amount,
		Currency:     p.Currency,
		Status:       p.Status,
		CaptureID:    deref(p.CaptureID),
		RefundReason: deref(p.RefundReason),
		Time:         p.Time,
	}
}

// NetsTransactionPO NETS QR 待完成记录；order_id 为 NULL 表示尚未生成订单
type NetsTransactionPO struct {
	ID               int64           `gorm:"primaryKey;autoIncrement"`
	UserID           int64           `gorm:"index"`
	OrderID          *int64          `gorm:"index"`
	Amount           decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	TxnRetrievalRef  string          `gorm:"size:128;uniqueIndex;not null"`
	NetTransactionID *string         `gorm:"size:128"`
	CourseInitID     *string         `gorm:"size:128"`
	Status           string          `gorm:"size:32;not null"`
	ResponseCode     *string         `gorm:"size:16"`
	NetworkStatus    *int
	Payload          *string   `gorm:"type:text"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

func (NetsTransactionPO) TableName() string {
	return "nets_transactions"
}

func FromNetsDomain(n *payment.NetsTransaction) *NetsTransactionPO {
	p := &NetsTransactionPO{
		ID:               n.ID,
		UserID:           n.UserID,
		Amount:           n.Amount,
		TxnRetrievalRef:  n.TxnRetrievalRef,
		NetTransactionID: nullable(n.NetTransactionID),
		CourseInitID:     nullable(n.CourseInitID),
		Status:           n.Status,
		ResponseCode:     nullable(n.ResponseCode),
		Payload:          nullable(n.Payload),
	}
	if n.OrderID > 0 {
		id := n.OrderID
		p.OrderID = &id
	}
	network := n.NetworkStatus
	p.NetworkStatus = &network
	return p
}

func (p *NetsTransactionPO) ToDomain() *payment.NetsTransaction {
	n := &payment.NetsTransaction{
		ID:               p.ID,
		UserID:           p.UserID,
		Amount:           p.Amount,
		TxnRetrievalRef:  p.TxnRetrievalRef,
		NetTransactionID: deref(p.NetTransactionID),
		CourseInitID:     deref(p.CourseInitID),
		Status:           p.Status,
		ResponseCode:     deref(p.ResponseCode),
		Payload:          deref(p.Payload),
		CreatedAt:        p.CreatedAt,
	}
	if p.OrderID != nil {
		n.OrderID = *p.OrderID
	}
	if p.NetworkStatus != nil {
		n.NetworkStatus = *p.NetworkStatus
	}
	return n
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
