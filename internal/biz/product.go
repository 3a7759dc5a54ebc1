package biz

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// 商品状态
const (
	ProductStatusPublished   = "PUBLISHED"
	ProductStatusUnpublished = "UNPUBLISHED"
)

// Product 可预订的活动商品
type Product struct {
	ID           uint64
	Name         string
	Description  string
	Price        decimal.Decimal
	Stock        int64
	BookingCount int64
	MinAge       int
	MaxAge       int
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Published 商品是否已上架
func (p *Product) Published() bool {
	return p.Status == ProductStatusPublished
}

// AgeAllowed 参与者年龄是否在商品限制范围内
func (p *Product) AgeAllowed(age int) bool {
	return age >= p.MinAge && age <= p.MaxAge
}

// ProductRepo 商品仓库接口
type ProductRepo interface {
	GetProduct(ctx context.Context, productID uint64) (*Product, error)
	// IncrBookingCount 累加商品已预订数量, 在订单落定的同一事务内调用
	IncrBookingCount(ctx context.Context, productID uint64, delta int64) error
}

// CacheInvalidator 读侧缓存失效接口, 调用失败只记录日志
type CacheInvalidator interface {
	// InvalidateProductDetail 删除商品详情缓存
	InvalidateProductDetail(ctx context.Context, productID uint64) error
	// InvalidateTag 删除标签索引下登记的所有缓存键
	InvalidateTag(ctx context.Context, tag string) error
}
