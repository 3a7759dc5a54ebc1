package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RefundRecord 退款单模型
type RefundRecord struct {
	ID             uint64          `gorm:"primaryKey;column:refund_record_id;autoIncrement;type:bigint unsigned"`
	RefundNo       string          `gorm:"column:refund_no;type:varchar(64);not null;uniqueIndex:uk_refund_no"`
	OrderID        uint64          `gorm:"column:order_id;not null;index:idx_order_id"`
	Amount         decimal.Decimal `gorm:"column:amount;type:decimal(10,2);not null"`
	Status         string          `gorm:"column:status;type:varchar(20);not null;index:idx_status"` // PENDING, APPROVED, REJECTED, PROCESSING, COMPLETED, FAILED
	Reason         string          `gorm:"column:reason;type:varchar(255)"`
	ApprovedBy     uint64          `gorm:"column:approved_by"`
	ApproveNote    string          `gorm:"column:approve_note;type:varchar(255)"`
	ApprovedAt     *time.Time      `gorm:"column:approved_at"`
	RejectedBy     uint64          `gorm:"column:rejected_by"`
	RejectReason   string          `gorm:"column:reject_reason;type:varchar(255)"`
	RejectedAt     *time.Time      `gorm:"column:rejected_at"`
	WechatRefundID string          `gorm:"column:wechat_refund_id;type:varchar(64)"`
	FailReason     string          `gorm:"column:fail_reason;type:varchar(255)"`
	CreatedAt      time.Time       `gorm:"column:created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at"`
}

func (RefundRecord) TableName() string { return "refund_record" }
