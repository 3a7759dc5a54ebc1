package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentRecord 支付流水模型, 网关交易号全局唯一
type PaymentRecord struct {
	ID            uint64          `gorm:"primaryKey;column:payment_record_id;autoIncrement;type:bigint unsigned"`
	OrderID       uint64          `gorm:"column:order_id;not null;index:idx_order_id"`
	TransactionID string          `gorm:"column:transaction_id;type:varchar(64);not null;uniqueIndex:uk_transaction_id"`
	Channel       string          `gorm:"column:channel;type:varchar(20);not null"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(10,2);not null"`
	Status        string          `gorm:"column:status;type:varchar(20);not null"`
	NotifyData    string          `gorm:"column:notify_data;type:text"` // 网关原始报文, 仅用于排障
	CreatedAt     time.Time       `gorm:"column:created_at"`
}

func (PaymentRecord) TableName() string { return "payment_record" }
