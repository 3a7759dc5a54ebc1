package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product 活动商品模型
type Product struct {
	ID           uint64          `gorm:"primaryKey;column:product_id;autoIncrement;type:bigint unsigned"`
	Name         string          `gorm:"column:name;type:varchar(128);not null"`
	Description  string          `gorm:"column:description;type:text"`
	Price        decimal.Decimal `gorm:"column:price;type:decimal(10,2);not null"`
	Stock        int64           `gorm:"column:stock;not null"`
	BookingCount int64           `gorm:"column:booking_count;not null;default:0"`
	MinAge       int             `gorm:"column:min_age;not null;default:0"`
	MaxAge       int             `gorm:"column:max_age;not null;default:200"`
	Status       string          `gorm:"column:status;type:varchar(20);not null"` // PUBLISHED, UNPUBLISHED
	CreatedAt    time.Time       `gorm:"column:created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at"`
}

func (Product) TableName() string { return "product" }
