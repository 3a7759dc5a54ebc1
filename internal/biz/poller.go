package biz

import (
	"context"

	"xinyuan_tech/booking-service/internal/constants"
	bizerrors "xinyuan_tech/booking-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
)

// RateLimiter 查询限流接口, 按 订单+分钟 计数
type RateLimiter interface {
	// Allow 返回本次调用是否放行; 计数器基础设施故障时实现必须拒绝放行 (fail closed)
	Allow(ctx context.Context, orderNo string) (bool, error)
}

// PaymentStatusView 主动查询的返回视图
type PaymentStatusView struct {
	OrderNo       string
	Status        OrderStatus
	PaymentStatus PaymentStatus
	// Settled 订单是否已到终态
	Settled bool
	// RetryAfterSeconds 非终态时建议的重试间隔(秒)
	RetryAfterSeconds int
}

// PaymentQueryUsecase 买家触发的支付状态对账: 限流后主动查询网关,
// 结果汇入与回调相同的唯一落定入口
type PaymentQueryUsecase struct {
	orders  *OrderUsecase
	gateway GatewayClient
	limiter RateLimiter
	log     *log.Helper
}

// NewPaymentQueryUsecase 创建支付查询用例
func NewPaymentQueryUsecase(orders *OrderUsecase, gateway GatewayClient, limiter RateLimiter, logger log.Logger) *PaymentQueryUsecase {
	return &PaymentQueryUsecase{
		orders:  orders,
		gateway: gateway,
		limiter: limiter,
		log:     log.NewHelper(logger),
	}
}

func statusView(order *Order) *PaymentStatusView {
	view := &PaymentStatusView{
		OrderNo:       order.OrderNo,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Settled:       order.Status.Terminal(),
	}
	if !view.Settled {
		view.RetryAfterSeconds = constants.PaymentQueryRetryAfterSeconds
	}
	return view
}

// CheckStatus 查询订单支付状态
// 终态订单直接返回本地视图; PENDING 订单限流后查询网关并落定结果;
// 网关不可达时返回 "仍在等待" 视图, 绝不凭网关不可达推断终态
func (uc *PaymentQueryUsecase) CheckStatus(ctx context.Context, orderID, userID uint64) (*PaymentStatusView, error) {
	order, err := uc.orders.orderRepo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, bizerrors.ErrOrderNotFound()
	}
	if order.UserID != userID {
		return nil, bizerrors.ErrOrderNotOwner()
	}

	// 已到终态: 不再请求网关
	if order.Status.Terminal() {
		return statusView(order), nil
	}

	// 限流检查在任何网关调用之前完成; 计数失败按拒绝处理
	allowed, err := uc.limiter.Allow(ctx, order.OrderNo)
	if err != nil {
		uc.log.Warnf("rate limit counter failed for order %s, denying query: %v", order.OrderNo, err)
		return nil, bizerrors.ErrPaymentQueryRateLimited(constants.PaymentQueryRetryAfterSeconds)
	}
	if !allowed {
		return nil, bizerrors.ErrPaymentQueryRateLimited(constants.PaymentQueryRetryAfterSeconds)
	}

	charge, err := uc.gateway.QueryCharge(ctx, order.OrderNo)
	if err != nil {
		// 网关不可达: 状态保持不变, 告知调用方稍后重试
		uc.log.Warnf("gateway query failed for order %s: %v", order.OrderNo, err)
		return statusView(order), nil
	}

	updated, err := uc.orders.ApplyPaymentOutcome(ctx, order.OrderNo, &PaymentOutcome{
		Kind:          OutcomeFromTradeState(charge.TradeState),
		TransactionID: charge.TransactionID,
		SuccessTime:   charge.SuccessTime,
		AmountTotal:   charge.AmountTotal,
	})
	if err != nil {
		return nil, err
	}
	return statusView(updated), nil
}
