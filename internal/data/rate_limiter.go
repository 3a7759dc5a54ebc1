package data

import (
	"context"
	"fmt"
	"time"

	"xinyuan_tech/booking-service/internal/biz"
	"xinyuan_tech/booking-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// rateLimiter 单订单支付查询限流器, 固定分钟窗口计数
// 键形如 payment-query:{orderNo}:{minute}
type rateLimiter struct {
	rdb *redis.Client
	log *log.Helper
}

// NewRateLimiter 创建支付查询限流器
func NewRateLimiter(rdb *redis.Client, logger log.Logger) biz.RateLimiter {
	return &rateLimiter{
		rdb: rdb,
		log: log.NewHelper(logger),
	}
}

// Allow 当前分钟窗口内是否还允许查询
// INCR 后在首次计数时设置窗口过期; redis 故障时由调用方按拒绝处理
func (l *rateLimiter) Allow(ctx context.Context, orderNo string) (bool, error) {
	minute := time.Now().UTC().Unix() / 60
	key := fmt.Sprintf("%s%s:%d", constants.PaymentQueryKeyPrefix, orderNo, minute)

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		l.log.Errorf("rate limit counter failed for order %s: %v", orderNo, err)
		return false, err
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, constants.PaymentQueryWindow).Err(); err != nil {
			l.log.Warnf("failed to set expiry on rate limit key %s: %v", key, err)
		}
	}
	return count <= constants.PaymentQueryLimitPerMinute, nil
}
