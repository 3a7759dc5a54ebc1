package data

import (
	"context"
	"fmt"

	"xinyuan_tech/booking-service/internal/biz"
	"xinyuan_tech/booking-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// cacheInvalidator 读侧缓存失效实现
// 标签索引: 每个标签维护一个 SET, 集合成员是登记到该标签下的缓存键
type cacheInvalidator struct {
	rdb *redis.Client
	log *log.Helper
}

// NewCacheInvalidator 创建缓存失效器
func NewCacheInvalidator(rdb *redis.Client, logger log.Logger) biz.CacheInvalidator {
	return &cacheInvalidator{
		rdb: rdb,
		log: log.NewHelper(logger),
	}
}

// InvalidateProductDetail 删除商品详情缓存
func (c *cacheInvalidator) InvalidateProductDetail(ctx context.Context, productID uint64) error {
	key := fmt.Sprintf("%s%d", constants.ProductDetailKeyPrefix, productID)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		c.log.Errorf("Failed to invalidate product detail cache %s: %v", key, err)
		return err
	}
	return nil
}

// InvalidateTag 删除标签索引下登记的所有缓存键, 最后删除标签集合本身
func (c *cacheInvalidator) InvalidateTag(ctx context.Context, tag string) error {
	tagKey := constants.CacheTagKeyPrefix + tag
	keys, err := c.rdb.SMembers(ctx, tagKey).Result()
	if err != nil {
		c.log.Errorf("Failed to load cache tag %s: %v", tag, err)
		return err
	}
	if len(keys) > 0 {
		if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
			c.log.Errorf("Failed to delete keys under tag %s: %v", tag, err)
			return err
		}
	}
	if err := c.rdb.Del(ctx, tagKey).Err(); err != nil {
		c.log.Errorf("Failed to delete tag set %s: %v", tag, err)
		return err
	}
	return nil
}
