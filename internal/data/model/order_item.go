package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem 订单商品快照模型
type OrderItem struct {
	ID          uint64          `gorm:"primaryKey;column:order_item_id;autoIncrement;type:bigint unsigned"`
	OrderID     uint64          `gorm:"column:order_id;not null;index:idx_order_id"`
	ProductID   uint64          `gorm:"column:product_id;not null;index:idx_product_id"`
	ProductName string          `gorm:"column:product_name;type:varchar(128)"`
	Price       decimal.Decimal `gorm:"column:price;type:decimal(10,2);not null"`
	Quantity    int64           `gorm:"column:quantity;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at"`
}

func (OrderItem) TableName() string { return "booking_order_item" }
