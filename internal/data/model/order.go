package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order 订单模型
type Order struct {
	ID            uint64          `gorm:"primaryKey;column:order_id;autoIncrement;type:bigint unsigned"`
	OrderNo       string          `gorm:"column:order_no;type:varchar(64);not null;uniqueIndex:uk_order_no"`
	UserID        uint64          `gorm:"column:user_id;not null;index:idx_user_id"`
	TotalAmount   decimal.Decimal `gorm:"column:total_amount;type:decimal(10,2);not null"`
	ActualAmount  decimal.Decimal `gorm:"column:actual_amount;type:decimal(10,2);not null"`
	Status        string          `gorm:"column:status;type:varchar(20);not null;index:idx_status_created"` // PENDING, PAID, CANCELLED, REFUNDED, COMPLETED
	PaymentStatus string          `gorm:"column:payment_status;type:varchar(20);not null"`
	PaidAt        *time.Time      `gorm:"column:paid_at"`
	CancelledAt   *time.Time      `gorm:"column:cancelled_at"`
	CreatedAt     time.Time       `gorm:"column:created_at;index:idx_status_created"`
	UpdatedAt     time.Time       `gorm:"column:updated_at"`
}

func (Order) TableName() string { return "booking_order" }
