package biz

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"
)

// StockCache 库存预占计数器的缓存原语接口
// 计数器只是预占闸口, 不是库存的权威来源
type StockCache interface {
	// SeedIfAbsent 计数器不存在时用数据库库存初始化 (SETNX 语义)
	SeedIfAbsent(ctx context.Context, productID uint64, stock int64) error
	// DecrBy 原子减少计数器并返回减少后的值
	DecrBy(ctx context.Context, productID uint64, qty int64) (int64, error)
	// IncrBy 原子增加计数器并返回增加后的值
	IncrBy(ctx context.Context, productID uint64, qty int64) (int64, error)
}

// StockReserver 库存预占器, 封装 预占/补偿/归还 协议
type StockReserver struct {
	cache StockCache
	log   *log.Helper
}

// NewStockReserver 创建库存预占器
func NewStockReserver(cache StockCache, logger log.Logger) *StockReserver {
	return &StockReserver{
		cache: cache,
		log:   log.NewHelper(logger),
	}
}

// EnsureSeeded 计数器冷启动初始化
// 使用 SETNX 避免并发冷启动互相覆盖; 读到的 dbStock 可能已有少量陈旧, 属可接受范围
func (s *StockReserver) EnsureSeeded(ctx context.Context, productID uint64, dbStock int64) error {
	return s.cache.SeedIfAbsent(ctx, productID, dbStock)
}

// Reserve 预占 qty 份库存
// 一次往返内完成原子扣减; 扣成负数立即补偿回加并报告失败;
// 扣减调用本身失败时不假设计数器已变化, 直接报告失败
func (s *StockReserver) Reserve(ctx context.Context, productID uint64, qty int64) (bool, error) {
	remaining, err := s.cache.DecrBy(ctx, productID, qty)
	if err != nil {
		s.log.Errorf("stock decrement failed for product %d: %v", productID, err)
		return false, err
	}
	if remaining < 0 {
		// 补偿回加, 把计数器恢复到调用前的值
		if _, err := s.cache.IncrBy(ctx, productID, qty); err != nil {
			s.log.Errorf("compensating increment failed for product %d: %v", productID, err)
		}
		return false, nil
	}
	return true, nil
}

// Release 归还 qty 份库存
// 用于预占回滚和取消/退款后的库存归还; 这里的失败不阻断调用方的业务事务, 只记录日志
func (s *StockReserver) Release(ctx context.Context, productID uint64, qty int64) {
	if _, err := s.cache.IncrBy(ctx, productID, qty); err != nil {
		s.log.Errorf("stock release failed for product %d (qty %d): %v", productID, qty, err)
	}
}
