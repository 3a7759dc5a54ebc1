package service

import (
	"context"
	"time"

	"xinyuan_tech/booking-service/internal/auth"
	"xinyuan_tech/booking-service/internal/biz"
	"xinyuan_tech/booking-service/internal/constants"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// BookingService 预订服务
type BookingService struct {
	orders   *biz.OrderUsecase
	payments *biz.PaymentQueryUsecase
	webhooks *biz.WebhookUsecase
	refunds  *biz.RefundUsecase
	log      *log.Helper
}

// NewBookingService 创建预订服务
func NewBookingService(
	orders *biz.OrderUsecase,
	payments *biz.PaymentQueryUsecase,
	webhooks *biz.WebhookUsecase,
	refunds *biz.RefundUsecase,
	logger log.Logger,
) *BookingService {
	return &BookingService{
		orders:   orders,
		payments: payments,
		webhooks: webhooks,
		refunds:  refunds,
		log:      log.NewHelper(logger),
	}
}

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	ProductID      uint64 `json:"product_id"`
	Quantity       int64  `json:"quantity"`
	ParticipantAge int    `json:"participant_age"`
}

// OrderItemReply 订单商品快照
type OrderItemReply struct {
	ProductID   uint64 `json:"product_id"`
	ProductName string `json:"product_name"`
	Price       string `json:"price"`
	Quantity    int64  `json:"quantity"`
}

// OrderReply 订单视图
type OrderReply struct {
	OrderID       uint64            `json:"order_id"`
	OrderNo       string            `json:"order_no"`
	UserID        uint64            `json:"user_id"`
	TotalAmount   string            `json:"total_amount"`
	ActualAmount  string            `json:"actual_amount"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	PaidAt        string            `json:"paid_at,omitempty"`
	CancelledAt   string            `json:"cancelled_at,omitempty"`
	CreatedAt     string            `json:"created_at"`
	Items         []*OrderItemReply `json:"items,omitempty"`
}

// CreateOrderReply 创建订单应答, 附带拉起支付所需的二维码链接
type CreateOrderReply struct {
	Order      *OrderReply `json:"order"`
	PrepayCode string      `json:"prepay_code"`
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func toOrderReply(order *biz.Order) *OrderReply {
	reply := &OrderReply{
		OrderID:       order.ID,
		OrderNo:       order.OrderNo,
		UserID:        order.UserID,
		TotalAmount:   order.TotalAmount.StringFixed(2),
		ActualAmount:  order.ActualAmount.StringFixed(2),
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		PaidAt:        formatTime(order.PaidAt),
		CancelledAt:   formatTime(order.CancelledAt),
		CreatedAt:     order.CreatedAt.Format(time.RFC3339),
	}
	for _, item := range order.Items {
		reply.Items = append(reply.Items, &OrderItemReply{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Price:       item.Price.StringFixed(2),
			Quantity:    item.Quantity,
		})
	}
	return reply
}

// CreateOrder 创建订单
func (s *BookingService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderReply, error) {
	uid, ok := auth.GetUIDFromContext(ctx)
	if !ok {
		return nil, errors.Unauthorized("UNAUTHORIZED", "authentication required")
	}
	if req.ProductID == 0 || req.Quantity <= 0 {
		return nil, errors.BadRequest("INVALID_PARAM", "product_id and a positive quantity are required")
	}

	projection, err := s.orders.CreateOrder(ctx, uid, &biz.CreateOrderRequest{
		ProductID:      req.ProductID,
		Quantity:       req.Quantity,
		ParticipantAge: req.ParticipantAge,
	})
	if err != nil {
		return nil, err
	}
	return &CreateOrderReply{
		Order:      toOrderReply(projection.Order),
		PrepayCode: projection.PrepayCode,
	}, nil
}

// GetOrder 查询订单详情, 仅限本人或管理员
func (s *BookingService) GetOrder(ctx context.Context, orderID uint64) (*OrderReply, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckOwnership(ctx, order.UserID); err != nil {
		return nil, err
	}
	return toOrderReply(order), nil
}

// ListOrdersReply 订单分页视图
type ListOrdersReply struct {
	Orders   []*OrderReply `json:"orders"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// ListOrders 分页查询当前用户的订单
func (s *BookingService) ListOrders(ctx context.Context, page, pageSize int) (*ListOrdersReply, error) {
	uid, ok := auth.GetUIDFromContext(ctx)
	if !ok {
		return nil, errors.Unauthorized("UNAUTHORIZED", "authentication required")
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}
	if pageSize > constants.MaxPageSize {
		pageSize = constants.MaxPageSize
	}

	orders, total, err := s.orders.ListUserOrders(ctx, uid, page, pageSize)
	if err != nil {
		return nil, err
	}
	reply := &ListOrdersReply{
		Orders:   make([]*OrderReply, 0, len(orders)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for _, order := range orders {
		reply.Orders = append(reply.Orders, toOrderReply(order))
	}
	return reply, nil
}

// PaymentStatusReply 支付状态查询应答
type PaymentStatusReply struct {
	OrderNo           string `json:"order_no"`
	Status            string `json:"status"`
	PaymentStatus     string `json:"payment_status"`
	Settled           bool   `json:"settled"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

// CheckPaymentStatus 主动查询订单支付状态
func (s *BookingService) CheckPaymentStatus(ctx context.Context, orderID uint64) (*PaymentStatusReply, error) {
	uid, ok := auth.GetUIDFromContext(ctx)
	if !ok {
		return nil, errors.Unauthorized("UNAUTHORIZED", "authentication required")
	}

	view, err := s.payments.CheckStatus(ctx, orderID, uid)
	if err != nil {
		return nil, err
	}
	return &PaymentStatusReply{
		OrderNo:           view.OrderNo,
		Status:            string(view.Status),
		PaymentStatus:     string(view.PaymentStatus),
		Settled:           view.Settled,
		RetryAfterSeconds: view.RetryAfterSeconds,
	}, nil
}

// HandlePaymentNotification 微信支付结果回调
func (s *BookingService) HandlePaymentNotification(ctx context.Context, req *biz.NotificationRequest) error {
	return s.webhooks.HandlePaymentNotification(ctx, req)
}

// HandleRefundNotification 微信退款结果回调
func (s *BookingService) HandleRefundNotification(ctx context.Context, req *biz.NotificationRequest) error {
	return s.webhooks.HandleRefundNotification(ctx, req)
}

// RequestRefundRequest 退款申请
type RequestRefundRequest struct {
	OrderID uint64 `json:"order_id"`
	Reason  string `json:"reason"`
}

// RefundReply 退款单视图
type RefundReply struct {
	RefundNo     string `json:"refund_no"`
	OrderID      uint64 `json:"order_id"`
	Amount       string `json:"amount"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	ApproveNote  string `json:"approve_note,omitempty"`
	RejectReason string `json:"reject_reason,omitempty"`
	FailReason   string `json:"fail_reason,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func toRefundReply(record *biz.RefundRecord) *RefundReply {
	return &RefundReply{
		RefundNo:     record.RefundNo,
		OrderID:      record.OrderID,
		Amount:       record.Amount.StringFixed(2),
		Status:       string(record.Status),
		Reason:       record.Reason,
		ApproveNote:  record.ApproveNote,
		RejectReason: record.RejectReason,
		FailReason:   record.FailReason,
		CreatedAt:    record.CreatedAt.Format(time.RFC3339),
	}
}

// RequestRefund 买家发起退款申请
func (s *BookingService) RequestRefund(ctx context.Context, req *RequestRefundRequest) (*RefundReply, error) {
	uid, ok := auth.GetUIDFromContext(ctx)
	if !ok {
		return nil, errors.Unauthorized("UNAUTHORIZED", "authentication required")
	}
	if req.OrderID == 0 {
		return nil, errors.BadRequest("INVALID_PARAM", "order_id is required")
	}

	record, err := s.refunds.RequestRefund(ctx, uid, req.OrderID, req.Reason)
	if err != nil {
		return nil, err
	}
	return toRefundReply(record), nil
}

// GetRefund 查询退款单
func (s *BookingService) GetRefund(ctx context.Context, refundNo string) (*RefundReply, error) {
	record, err := s.refunds.GetRefund(ctx, refundNo)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.GetOrder(ctx, record.OrderID)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckOwnership(ctx, order.UserID); err != nil {
		return nil, err
	}
	return toRefundReply(record), nil
}

// ReviewRefundRequest 退款审批请求
type ReviewRefundRequest struct {
	Note   string `json:"note"`
	Reason string `json:"reason"`
}

// ApproveRefund 管理员批准退款
func (s *BookingService) ApproveRefund(ctx context.Context, refundNo string, req *ReviewRefundRequest) (*RefundReply, error) {
	if err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	adminID, _ := auth.GetUIDFromContext(ctx)

	record, err := s.refunds.Approve(ctx, refundNo, req.Note, adminID)
	if err != nil {
		return nil, err
	}
	return toRefundReply(record), nil
}

// RejectRefund 管理员驳回退款
func (s *BookingService) RejectRefund(ctx context.Context, refundNo string, req *ReviewRefundRequest) (*RefundReply, error) {
	if err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	adminID, _ := auth.GetUIDFromContext(ctx)

	record, err := s.refunds.Reject(ctx, refundNo, req.Reason, adminID)
	if err != nil {
		return nil, err
	}
	return toRefundReply(record), nil
}

// RetryRefund 管理员重试退款清算
func (s *BookingService) RetryRefund(ctx context.Context, refundNo string) (*RefundReply, error) {
	if err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	adminID, _ := auth.GetUIDFromContext(ctx)

	record, err := s.refunds.Retry(ctx, refundNo, adminID)
	if err != nil {
		return nil, err
	}
	return toRefundReply(record), nil
}
