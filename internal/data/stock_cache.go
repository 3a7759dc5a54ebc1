package data

import (
	"context"
	"fmt"

	"xinyuan_tech/booking-service/internal/biz"
	"xinyuan_tech/booking-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// stockCache 库存预占计数器实现, 键形如 product:stock:{id}
type stockCache struct {
	rdb *redis.Client
	log *log.Helper
}

// NewStockCache 创建库存计数器缓存
func NewStockCache(rdb *redis.Client, logger log.Logger) biz.StockCache {
	return &stockCache{
		rdb: rdb,
		log: log.NewHelper(logger),
	}
}

func stockKey(productID uint64) string {
	return fmt.Sprintf("%s%d", constants.StockKeyPrefix, productID)
}

// SeedIfAbsent SETNX 初始化计数器, 已存在时不覆盖
func (c *stockCache) SeedIfAbsent(ctx context.Context, productID uint64, stock int64) error {
	seeded, err := c.rdb.SetNX(ctx, stockKey(productID), stock, 0).Result()
	if err != nil {
		c.log.Errorf("Failed to seed stock counter for product %d: %v", productID, err)
		return err
	}
	if seeded {
		c.log.Infof("stock counter seeded for product %d: %d", productID, stock)
	}
	return nil
}

// DecrBy 原子减少计数器
func (c *stockCache) DecrBy(ctx context.Context, productID uint64, qty int64) (int64, error) {
	return c.rdb.DecrBy(ctx, stockKey(productID), qty).Result()
}

// IncrBy 原子增加计数器
func (c *stockCache) IncrBy(ctx context.Context, productID uint64, qty int64) (int64, error) {
	return c.rdb.IncrBy(ctx, stockKey(productID), qty).Result()
}
