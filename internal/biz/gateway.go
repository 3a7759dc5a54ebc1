package biz

import (
	"context"

	"xinyuan_tech/booking-service/internal/constants"
)

// OutcomeKind 引擎内部对网关交易状态的三态归类
type OutcomeKind string

const (
	// OutcomeSuccess 支付成功
	OutcomeSuccess OutcomeKind = "success"
	// OutcomeClosed 已关闭或支付失败
	OutcomeClosed OutcomeKind = "closed_or_error"
	// OutcomePending 未到终态
	OutcomePending OutcomeKind = "pending"
)

// PaymentOutcome 一次网关支付结果, 回调与主动查询两条路径共用
type PaymentOutcome struct {
	Kind          OutcomeKind
	TransactionID string
	SuccessTime   string
	// AmountTotal 订单总金额, 单位分
	AmountTotal int64
	// Raw 原始通知内容, 留档到支付流水
	Raw string
}

// OutcomeFromTradeState 将微信交易状态映射为三态结果
// SUCCESS -> success, CLOSED/PAYERROR -> closed_or_error, 其余 -> pending
func OutcomeFromTradeState(state string) OutcomeKind {
	switch state {
	case constants.TradeStateSuccess:
		return OutcomeSuccess
	case constants.TradeStateClosed, constants.TradeStatePayError:
		return OutcomeClosed
	default:
		return OutcomePending
	}
}

// ChargeStatus 网关查单结果
type ChargeStatus struct {
	TradeState    string
	TransactionID string
	SuccessTime   string
	// AmountTotal 单位分
	AmountTotal int64
}

// GatewayRefundResult 网关退款受理/查询结果
type GatewayRefundResult struct {
	RefundID string
	// Status 网关退款状态: PROCESSING, SUCCESS, CLOSED, ABNORMAL
	Status string
}

// GatewayClient 支付网关客户端接口 (防腐层)
type GatewayClient interface {
	// CreateCharge 创建预支付交易, 返回拉起支付所需的凭证 (Native 下为二维码链接)
	CreateCharge(ctx context.Context, description, orderNo string, amountTotal int64, payerRef string) (string, error)
	// QueryCharge 按商户订单号查询支付状态
	QueryCharge(ctx context.Context, orderNo string) (*ChargeStatus, error)
	// Refund 发起退款, 金额单位分
	Refund(ctx context.Context, orderNo, refundNo string, refundAmount, totalAmount int64, reason string) (*GatewayRefundResult, error)
	// QueryRefund 按商户退款单号查询退款状态
	QueryRefund(ctx context.Context, refundNo string) (*GatewayRefundResult, error)
	// VerifySignature 对回调原始报文验签
	VerifySignature(ctx context.Context, timestamp, nonce, rawBody, signature, certSerial string) error
	// DecryptNotification 解密回调密文资源
	DecryptNotification(ctx context.Context, ciphertext, associatedData, nonce string) ([]byte, error)
}

// NotificationClient 通知服务客户端接口 (防腐层), 所有调用均为尽力而为
type NotificationClient interface {
	NotifyOrderPaid(ctx context.Context, userID uint64, orderNo string) error
	NotifyRefundResult(ctx context.Context, userID uint64, refundNo string, success bool) error
}
