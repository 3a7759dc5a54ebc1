package biz

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"xinyuan_tech/booking-service/internal/constants"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type webhookEnv struct {
	*orderEnv
	webhooks   *WebhookUsecase
	refundRepo *fakeRefundRepo
}

func newWebhookEnv(products ...*Product) *webhookEnv {
	env := newOrderEnv(products...)
	logger := testLogger()
	refundRepo := newFakeRefundRepo()
	stock := NewStockReserver(env.cache, logger)
	refunds := NewRefundUsecase(fakeTx{}, refundRepo, env.orderRepo, env.paymentRepo,
		stock, env.gateway, env.notify, logger)
	return &webhookEnv{
		orderEnv:   env,
		webhooks:   NewWebhookUsecase(env.gateway, env.orders, refunds, logger),
		refundRepo: refundRepo,
	}
}

func notifyRequest(body []byte) *NotificationRequest {
	return &NotificationRequest{
		Timestamp:  "1790000000",
		Nonce:      "test-nonce",
		Signature:  "test-signature",
		CertSerial: "test-serial",
		RawBody:    body,
	}
}

func envelopeBody(t *testing.T, eventType string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":         "evt-1",
		"event_type": eventType,
		"resource": map[string]string{
			"ciphertext":      "b64-ciphertext",
			"associated_data": "transaction",
			"nonce":           "res-nonce",
		},
	})
	require.NoError(t, err)
	return body
}

func paymentPlaintext(t *testing.T, orderNo, tradeState string, amountFen int64) []byte {
	t.Helper()
	plain, err := json.Marshal(map[string]interface{}{
		"out_trade_no":   orderNo,
		"transaction_id": "wx-txn-1",
		"trade_state":    tradeState,
		"success_time":   "2026-08-30T12:00:00+08:00",
		"amount":         map[string]int64{"total": amountFen, "payer_total": amountFen},
	})
	require.NoError(t, err)
	return plain
}

func TestHandlePaymentNotificationMissingHeaders(t *testing.T) {
	env := newWebhookEnv(testProduct())
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(r *NotificationRequest)
	}{
		{"missing timestamp", func(r *NotificationRequest) { r.Timestamp = "" }},
		{"missing nonce", func(r *NotificationRequest) { r.Nonce = "" }},
		{"missing signature", func(r *NotificationRequest) { r.Signature = "" }},
		{"missing serial", func(r *NotificationRequest) { r.CertSerial = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := notifyRequest(envelopeBody(t, "TRANSACTION.SUCCESS"))
			tt.mutate(req)

			err := env.webhooks.HandlePaymentNotification(ctx, req)
			require.Error(t, err)
			assert.Equal(t, "NOTIFY_VERIFY_FAILED", kerrors.FromError(err).Reason)
		})
	}
	// 头部校验在验签之前, 网关从未被调用
	assert.Zero(t, env.gateway.verifyCalls)
}

func TestHandlePaymentNotificationBadSignature(t *testing.T) {
	env := newWebhookEnv(testProduct())
	env.gateway.verifyErr = errors.New("signature mismatch")

	err := env.webhooks.HandlePaymentNotification(context.Background(), notifyRequest(envelopeBody(t, "TRANSACTION.SUCCESS")))
	require.Error(t, err)
	assert.Equal(t, "NOTIFY_VERIFY_FAILED", kerrors.FromError(err).Reason)
}

func TestHandlePaymentNotificationSuccess(t *testing.T) {
	env := newWebhookEnv(testProduct())
	ctx := context.Background()
	order := seedPendingOrder(env.orderEnv, decimal.NewFromFloat(99.50))
	env.gateway.plaintext = paymentPlaintext(t, order.OrderNo, constants.TradeStateSuccess, order.ActualAmountFen())

	err := env.webhooks.HandlePaymentNotification(ctx, notifyRequest(envelopeBody(t, "TRANSACTION.SUCCESS")))
	require.NoError(t, err)

	stored, _ := env.orderRepo.GetOrder(ctx, order.ID)
	assert.Equal(t, OrderStatusPaid, stored.Status)
	require.Len(t, env.paymentRepo.records, 1)
	// 原始解密报文留档到流水
	assert.Contains(t, env.paymentRepo.records[0].NotifyData, order.OrderNo)
}

func TestHandlePaymentNotificationReplayOnSettledOrder(t *testing.T) {
	env := newWebhookEnv(testProduct())
	ctx := context.Background()
	order := seedPendingOrder(env.orderEnv, decimal.NewFromFloat(99.50))
	env.gateway.plaintext = paymentPlaintext(t, order.OrderNo, constants.TradeStateSuccess, order.ActualAmountFen())

	require.NoError(t, env.webhooks.HandlePaymentNotification(ctx, notifyRequest(envelopeBody(t, "TRANSACTION.SUCCESS"))))
	// 重放同一通知: 应答成功, 不重复施加副作用
	require.NoError(t, env.webhooks.HandlePaymentNotification(ctx, notifyRequest(envelopeBody(t, "TRANSACTION.SUCCESS"))))

	assert.Len(t, env.paymentRepo.records, 1)
	assert.Equal(t, int64(1), env.productRepo.bookingCounts[1])
}

func TestHandlePaymentNotificationAmountMismatch(t *testing.T) {
	env := newWebhookEnv(testProduct())
	ctx := context.Background()
	order := seedPendingOrder(env.orderEnv, decimal.NewFromFloat(99.50))
	env.gateway.plaintext = paymentPlaintext(t, order.OrderNo, constants.TradeStateSuccess, 1)

	err := env.webhooks.HandlePaymentNotification(ctx, notifyRequest(envelopeBody(t, "TRANSACTION.SUCCESS")))
	require.Error(t, err)
	assert.Equal(t, "PAYMENT_AMOUNT_MISMATCH", kerrors.FromError(err).Reason)

	stored, _ := env.orderRepo.GetOrder(ctx, order.ID)
	assert.Equal(t, OrderStatusPending, stored.Status)
	assert.Empty(t, env.paymentRepo.records)
}

func TestHandlePaymentNotificationUnknownOrder(t *testing.T) {
	env := newWebhookEnv(testProduct())
	env.gateway.plaintext = paymentPlaintext(t, "BO-missing", constants.TradeStateSuccess, 9950)

	// 订单不存在时报错, 传输层应答 FAIL 促使网关重试
	err := env.webhooks.HandlePaymentNotification(context.Background(), notifyRequest(envelopeBody(t, "TRANSACTION.SUCCESS")))
	require.Error(t, err)
	assert.Equal(t, "ORDER_NOT_FOUND", kerrors.FromError(err).Reason)
}

func TestHandleRefundNotificationSettlesProcessingRefund(t *testing.T) {
	env := newWebhookEnv(testProduct())
	ctx := context.Background()
	order := seedPendingOrder(env.orderEnv, decimal.NewFromFloat(99.50))

	now := time.Now().UTC()
	record := &RefundRecord{
		RefundNo:  "RFtest001",
		OrderID:   order.ID,
		Amount:    order.ActualAmount,
		Status:    RefundStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, env.refundRepo.CreateRefund(ctx, record))

	plain, err := json.Marshal(map[string]interface{}{
		"out_trade_no":  order.OrderNo,
		"out_refund_no": record.RefundNo,
		"refund_id":     "wx-refund-1",
		"refund_status": GatewayRefundSuccess,
		"amount":        map[string]int64{"refund": 9950, "total": 9950},
	})
	require.NoError(t, err)
	env.gateway.plaintext = plain

	require.NoError(t, env.webhooks.HandleRefundNotification(ctx, notifyRequest(envelopeBody(t, "REFUND.SUCCESS"))))

	stored, _ := env.refundRepo.GetRefundByNo(ctx, record.RefundNo)
	assert.Equal(t, RefundStatusCompleted, stored.Status)
}
