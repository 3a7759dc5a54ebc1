package biz

import (
	"context"
	"encoding/json"
	"strings"

	bizerrors "xinyuan_tech/booking-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
)

// NotificationRequest 微信回调的原始报文与传输头
type NotificationRequest struct {
	Timestamp  string
	Nonce      string
	Signature  string
	CertSerial string
	RawBody    []byte
}

// notificationEnvelope 回调通知外层结构
type notificationEnvelope struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		Ciphertext     string `json:"ciphertext"`
		AssociatedData string `json:"associated_data"`
		Nonce          string `json:"nonce"`
	} `json:"resource"`
}

// transactionResource 解密后的支付结果资源
type transactionResource struct {
	OutTradeNo    string `json:"out_trade_no"`
	TransactionID string `json:"transaction_id"`
	TradeState    string `json:"trade_state"`
	SuccessTime   string `json:"success_time"`
	Amount        struct {
		Total      int64 `json:"total"`
		PayerTotal int64 `json:"payer_total"`
	} `json:"amount"`
}

// refundResource 解密后的退款结果资源
type refundResource struct {
	OutTradeNo   string `json:"out_trade_no"`
	OutRefundNo  string `json:"out_refund_no"`
	RefundID     string `json:"refund_id"`
	RefundStatus string `json:"refund_status"`
	Amount       struct {
		Refund int64 `json:"refund"`
		Total  int64 `json:"total"`
	} `json:"amount"`
}

// WebhookUsecase 回调接入守卫: 验签 -> 解密 -> 幂等分发到唯一落定入口
type WebhookUsecase struct {
	gateway GatewayClient
	orders  *OrderUsecase
	refunds *RefundUsecase
	log     *log.Helper
}

// NewWebhookUsecase 创建回调用例
func NewWebhookUsecase(gateway GatewayClient, orders *OrderUsecase, refunds *RefundUsecase, logger log.Logger) *WebhookUsecase {
	return &WebhookUsecase{
		gateway: gateway,
		orders:  orders,
		refunds: refunds,
		log:     log.NewHelper(logger),
	}
}

// verifyAndDecrypt 回调通用前置: 头部校验 -> 验签 -> 解密资源
func (uc *WebhookUsecase) verifyAndDecrypt(ctx context.Context, req *NotificationRequest) (*notificationEnvelope, []byte, error) {
	// 缺少任一必需头部时在业务逻辑之前拒绝
	if req.Timestamp == "" || req.Nonce == "" || req.Signature == "" || req.CertSerial == "" {
		return nil, nil, bizerrors.ErrNotifyVerifyFailed("missing required signature headers")
	}

	// 对原始报文整体验签
	if err := uc.gateway.VerifySignature(ctx, req.Timestamp, req.Nonce, string(req.RawBody), req.Signature, req.CertSerial); err != nil {
		uc.log.Warnf("notification signature verification failed: %v", err)
		return nil, nil, bizerrors.ErrNotifyVerifyFailed("signature verification failed")
	}

	var envelope notificationEnvelope
	if err := json.Unmarshal(req.RawBody, &envelope); err != nil {
		return nil, nil, bizerrors.ErrNotifyVerifyFailed("malformed notification body")
	}

	plaintext, err := uc.gateway.DecryptNotification(ctx, envelope.Resource.Ciphertext, envelope.Resource.AssociatedData, envelope.Resource.Nonce)
	if err != nil {
		uc.log.Warnf("notification decryption failed: %v", err)
		return nil, nil, bizerrors.ErrNotifyVerifyFailed("resource decryption failed")
	}
	return &envelope, plaintext, nil
}

// HandlePaymentNotification 处理支付结果回调
// 返回 nil 表示应答 SUCCESS (含幂等跳过); 返回错误时传输层应答 FAIL 以触发网关重试
func (uc *WebhookUsecase) HandlePaymentNotification(ctx context.Context, req *NotificationRequest) error {
	envelope, plaintext, err := uc.verifyAndDecrypt(ctx, req)
	if err != nil {
		return err
	}

	var resource transactionResource
	if err := json.Unmarshal(plaintext, &resource); err != nil {
		return bizerrors.ErrNotifyVerifyFailed("malformed transaction resource")
	}
	if strings.TrimSpace(resource.OutTradeNo) == "" {
		return bizerrors.ErrNotifyVerifyFailed("out_trade_no is empty")
	}

	uc.log.Infof("payment notification %s: order=%s, trade_state=%s", envelope.ID, resource.OutTradeNo, resource.TradeState)

	// 订单不存在: 向网关报告失败使其重试, 另一条触发路径仍可能补齐一致性
	order, err := uc.orders.orderRepo.GetOrderByNo(ctx, resource.OutTradeNo)
	if err != nil {
		return err
	}
	if order == nil {
		return bizerrors.ErrOrderNotFound()
	}

	kind := OutcomeFromTradeState(resource.TradeState)

	// 幂等预检: 已处于与通知方向一致的终态时直接应答成功, 不触碰存储
	if order.Status.Terminal() {
		if (kind == OutcomeSuccess && order.Status == OrderStatusPaid) ||
			(kind == OutcomeClosed && order.Status == OrderStatusCancelled) {
			uc.log.Infof("order %s already settled as %s, notification skipped", order.OrderNo, order.Status)
			return nil
		}
		// 其他终态 (REFUNDED/COMPLETED) 同样不再变更
		return nil
	}

	// 金额校验: 通知金额必须与订单实付金额一致 (单位分), 不一致属致命错误
	if kind == OutcomeSuccess {
		if expected := order.ActualAmountFen(); resource.Amount.Total != expected {
			return bizerrors.ErrPaymentAmountMismatch(resource.Amount.Total, expected)
		}
	}

	_, err = uc.orders.ApplyPaymentOutcome(ctx, order.OrderNo, &PaymentOutcome{
		Kind:          kind,
		TransactionID: resource.TransactionID,
		SuccessTime:   resource.SuccessTime,
		AmountTotal:   resource.Amount.Total,
		Raw:           string(plaintext),
	})
	return err
}

// HandleRefundNotification 处理退款结果回调, 汇入退款落定入口
func (uc *WebhookUsecase) HandleRefundNotification(ctx context.Context, req *NotificationRequest) error {
	envelope, plaintext, err := uc.verifyAndDecrypt(ctx, req)
	if err != nil {
		return err
	}

	var resource refundResource
	if err := json.Unmarshal(plaintext, &resource); err != nil {
		return bizerrors.ErrNotifyVerifyFailed("malformed refund resource")
	}
	if strings.TrimSpace(resource.OutRefundNo) == "" {
		return bizerrors.ErrNotifyVerifyFailed("out_refund_no is empty")
	}

	uc.log.Infof("refund notification %s: refund=%s, status=%s", envelope.ID, resource.OutRefundNo, resource.RefundStatus)

	_, err = uc.refunds.ApplyRefundOutcome(ctx, resource.OutRefundNo, resource.RefundStatus, "")
	return err
}
