package errors

// 预订服务错误码定义
// 错误码格式：SSMMEE (6位数字)，其中 SS=14 表示 booking-service
// 模块划分：
//   01: 商品模块
//   02: 订单模块
//   03: 支付模块
//   04: 退款模块

// 商品模块 (140100-140199)
const (
	// ErrCodeProductNotFound 商品不存在错误
	ErrCodeProductNotFound = 140101
	// ErrCodeProductUnpublished 商品未上架错误
	ErrCodeProductUnpublished = 140102
	// ErrCodeStockInsufficient 库存不足错误
	ErrCodeStockInsufficient = 140103
	// ErrCodeAgeOutOfRange 参与者年龄不符合商品限制错误
	ErrCodeAgeOutOfRange = 140104
)

// 订单模块 (140200-140299)
const (
	// ErrCodeOrderNotFound 订单不存在错误
	ErrCodeOrderNotFound = 140201
	// ErrCodeOrderNotOwner 无权访问他人订单错误
	ErrCodeOrderNotOwner = 140202
	// ErrCodeInvalidTransition 订单状态流转非法错误
	ErrCodeInvalidTransition = 140203
	// ErrCodeOrderCreateFailed 订单创建失败错误
	ErrCodeOrderCreateFailed = 140204
)

// 支付模块 (140300-140399)
const (
	// ErrCodePaymentDataIntegrity 支付成功数据不完整或被篡改错误
	ErrCodePaymentDataIntegrity = 140301
	// ErrCodePaymentAmountMismatch 支付金额与订单实付金额不一致错误
	ErrCodePaymentAmountMismatch = 140302
	// ErrCodePaymentQueryRateLimited 支付查询触发限流错误
	ErrCodePaymentQueryRateLimited = 140303
	// ErrCodeGatewayUnavailable 支付网关不可用错误
	ErrCodeGatewayUnavailable = 140304
	// ErrCodeNotifyVerifyFailed 回调验签或解密失败错误
	ErrCodeNotifyVerifyFailed = 140305
)

// 退款模块 (140400-140499)
const (
	// ErrCodeRefundNotFound 退款单不存在错误
	ErrCodeRefundNotFound = 140401
	// ErrCodeRefundNotPending 退款单不处于待审批状态错误
	ErrCodeRefundNotPending = 140402
	// ErrCodeRefundReasonRequired 驳回理由不能为空错误
	ErrCodeRefundReasonRequired = 140403
	// ErrCodeRefundNotFailed 退款单不处于失败状态, 无法重试错误
	ErrCodeRefundNotFailed = 140404
	// ErrCodeRefundActiveExists 订单已存在进行中的退款单错误
	ErrCodeRefundActiveExists = 140405
	// ErrCodeRefundGatewayRefused 支付网关拒绝退款请求错误
	ErrCodeRefundGatewayRefused = 140406
)
