package data

import (
	"context"
	nethttp "net/http"

	"xinyuan_tech/booking-service/internal/biz"
	"xinyuan_tech/booking-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// notificationClient 通知服务 HTTP 客户端
// 未配置地址时降级为空实现, 本服务不因通知链路缺失而不可用
type notificationClient struct {
	client *http.Client
	log    *log.Helper
}

// NewNotificationClient 创建通知服务客户端
func NewNotificationClient(c *conf.Bootstrap, logger log.Logger) (biz.NotificationClient, error) {
	helper := log.NewHelper(logger)

	addr := ""
	if c != nil && c.Client != nil && c.Client.NotificationService != nil {
		addr = c.Client.NotificationService.Addr
	}
	if addr == "" {
		helper.Info("notification service address not configured, notifications disabled")
		return &notificationClient{log: helper}, nil
	}

	client, err := http.NewClient(context.Background(), http.WithEndpoint(addr))
	if err != nil {
		return nil, err
	}
	return &notificationClient{
		client: client,
		log:    helper,
	}, nil
}

type orderPaidNotification struct {
	UserID  uint64 `json:"user_id"`
	OrderNo string `json:"order_no"`
}

type refundResultNotification struct {
	UserID   uint64 `json:"user_id"`
	RefundNo string `json:"refund_no"`
	Success  bool   `json:"success"`
}

// NotifyOrderPaid 推送支付成功通知
func (c *notificationClient) NotifyOrderPaid(ctx context.Context, userID uint64, orderNo string) error {
	if c.client == nil {
		return nil
	}
	req := &orderPaidNotification{UserID: userID, OrderNo: orderNo}
	var reply struct{}
	return c.client.Invoke(ctx, nethttp.MethodPost, "/v1/notifications/order-paid", req, &reply)
}

// NotifyRefundResult 推送退款结果通知
func (c *notificationClient) NotifyRefundResult(ctx context.Context, userID uint64, refundNo string, success bool) error {
	if c.client == nil {
		return nil
	}
	req := &refundResultNotification{UserID: userID, RefundNo: refundNo, Success: success}
	var reply struct{}
	return c.client.Invoke(ctx, nethttp.MethodPost, "/v1/notifications/refund-result", req, &reply)
}
