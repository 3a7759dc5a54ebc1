package constants

import "time"

// 缓存键前缀
const (
	// StockKeyPrefix 库存预占计数器键前缀, 完整键形如 product:stock:{id}
	StockKeyPrefix = "product:stock:"
	// PaymentQueryKeyPrefix 支付查询限流计数器键前缀, 完整键形如 payment-query:{orderNo}:{minute}
	PaymentQueryKeyPrefix = "payment-query:"
	// ProductDetailKeyPrefix 商品详情缓存键前缀
	ProductDetailKeyPrefix = "product:detail:"
	// CacheTagKeyPrefix 缓存标签索引键前缀, 标签集合形如 cache:tag:{tag}
	CacheTagKeyPrefix = "cache:tag:"
	// CacheTagProductList 商品列表缓存登记的标签
	CacheTagProductList = "product-list"
)

// 缓存相关常量
const (
	// DefaultCacheExpiration 默认缓存过期时间
	DefaultCacheExpiration = time.Hour
	// CacheTagExpiration 标签索引集合过期时间
	CacheTagExpiration = 24 * time.Hour
)

// 支付查询限流
const (
	// PaymentQueryLimitPerMinute 单订单每分钟最多主动查询次数
	PaymentQueryLimitPerMinute = 10
	// PaymentQueryWindow 限流时间窗口
	PaymentQueryWindow = time.Minute
	// PaymentQueryRetryAfterSeconds 限流后建议的重试间隔(秒)
	PaymentQueryRetryAfterSeconds = 60
)

// 分页相关常量
const (
	// DefaultPageSize 默认分页大小
	DefaultPageSize = 10
	// MaxPageSize 最大分页大小
	MaxPageSize = 100
)

// 分布式锁相关常量
const (
	// OrderSweepLockKey 订单对账任务锁
	OrderSweepLockKey = "reconcile:orders"
	// RefundSweepLockKey 退款对账任务锁
	RefundSweepLockKey = "reconcile:refunds"
	// SweepLockExpiration 对账任务锁过期时间
	SweepLockExpiration = 10 * time.Minute
	// SweepLockRetries 对账任务锁重试次数
	SweepLockRetries = 1
)

// 微信支付交易状态(与微信 APIv3 保持一致)
const (
	TradeStateSuccess  = "SUCCESS"    // 支付成功
	TradeStateUserPay  = "USERPAYING" // 用户支付中
	TradeStateClosed   = "CLOSED"     // 已关闭
	TradeStatePayError = "PAYERROR"   // 支付失败
	TradeStateNotPay   = "NOTPAY"     // 未支付
	TradeStateRefund   = "REFUND"     // 转入退款
	TradeStateRevoked  = "REVOKED"    // 已撤销
)

// 支付渠道
const (
	PaymentChannelWechat = "wechat"
)

// 微信回调应答码
const (
	NotifyCodeSuccess = "SUCCESS"
	NotifyCodeFail    = "FAIL"
)
