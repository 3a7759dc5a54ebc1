package biz

import (
	"context"
	"time"

	"xinyuan_tech/booking-service/internal/conf"
	"xinyuan_tech/booking-service/internal/constants"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
)

// ReconcileUsecase 定时对账: 作为第三条触发路径, 同样只能经由唯一落定入口变更状态
type ReconcileUsecase struct {
	orders     *OrderUsecase
	refunds    *RefundUsecase
	orderRepo  OrderRepo
	refundRepo RefundRepo
	gateway    GatewayClient
	rs         *redsync.Redsync
	expireAge  time.Duration
	batchSize  int
	log        *log.Helper
}

// NewReconcileUsecase 创建对账用例
func NewReconcileUsecase(
	c *conf.Bootstrap,
	orders *OrderUsecase,
	refunds *RefundUsecase,
	orderRepo OrderRepo,
	refundRepo RefundRepo,
	gateway GatewayClient,
	rs *redsync.Redsync,
	logger log.Logger,
) *ReconcileUsecase {
	expireMinutes := 30
	batchSize := 100
	if c != nil && c.Booking != nil {
		if c.Booking.PaymentExpireMinutes > 0 {
			expireMinutes = c.Booking.PaymentExpireMinutes
		}
		if c.Booking.SweepBatchSize > 0 {
			batchSize = c.Booking.SweepBatchSize
		}
	}
	return &ReconcileUsecase{
		orders:     orders,
		refunds:    refunds,
		orderRepo:  orderRepo,
		refundRepo: refundRepo,
		gateway:    gateway,
		rs:         rs,
		expireAge:  time.Duration(expireMinutes) * time.Minute,
		batchSize:  batchSize,
		log:        log.NewHelper(logger),
	}
}

// SweepPendingOrders 扫描超出支付窗口仍 PENDING 的订单, 逐单向网关查证后落定
// 分布式锁保证同一时刻只有一个实例在扫描
func (uc *ReconcileUsecase) SweepPendingOrders(ctx context.Context) (int, error) {
	mutex := uc.rs.NewMutex(
		constants.OrderSweepLockKey,
		redsync.WithExpiry(constants.SweepLockExpiration),
		redsync.WithTries(constants.SweepLockRetries),
	)
	if err := mutex.LockContext(ctx); err != nil {
		uc.log.Infof("order sweep skipped: lock busy or another instance is sweeping")
		return 0, nil
	}
	defer func() {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			uc.log.Warnf("failed to unlock order sweep mutex: %v", err)
		}
	}()

	cutoff := time.Now().UTC().Add(-uc.expireAge)
	orders, err := uc.orderRepo.ListStalePendingOrders(ctx, cutoff, uc.batchSize)
	if err != nil {
		uc.log.Errorf("failed to list stale pending orders: %v", err)
		return 0, err
	}

	settled := 0
	for _, order := range orders {
		charge, err := uc.gateway.QueryCharge(ctx, order.OrderNo)
		if err != nil {
			// 网关不可达不推断终态, 留待下一轮
			uc.log.Warnf("sweep: gateway query failed for order %s: %v", order.OrderNo, err)
			continue
		}
		kind := OutcomeFromTradeState(charge.TradeState)
		// 入选订单已超出支付窗口, 网关确认未支付的按关单落定
		if kind == OutcomePending && charge.TradeState == constants.TradeStateNotPay {
			kind = OutcomeClosed
		}
		updated, err := uc.orders.ApplyPaymentOutcome(ctx, order.OrderNo, &PaymentOutcome{
			Kind:          kind,
			TransactionID: charge.TransactionID,
			SuccessTime:   charge.SuccessTime,
			AmountTotal:   charge.AmountTotal,
		})
		if err != nil {
			uc.log.Errorf("sweep: failed to settle order %s: %v", order.OrderNo, err)
			continue
		}
		if updated.Status.Terminal() {
			settled++
		}
	}

	uc.log.Infof("order sweep finished: scanned=%d, settled=%d", len(orders), settled)
	return settled, nil
}

// SweepProcessingRefunds 扫描 PROCESSING 退款单, 向网关查证后落定
func (uc *ReconcileUsecase) SweepProcessingRefunds(ctx context.Context) (int, error) {
	mutex := uc.rs.NewMutex(
		constants.RefundSweepLockKey,
		redsync.WithExpiry(constants.SweepLockExpiration),
		redsync.WithTries(constants.SweepLockRetries),
	)
	if err := mutex.LockContext(ctx); err != nil {
		uc.log.Infof("refund sweep skipped: lock busy or another instance is sweeping")
		return 0, nil
	}
	defer func() {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			uc.log.Warnf("failed to unlock refund sweep mutex: %v", err)
		}
	}()

	records, err := uc.refundRepo.ListRefundsByStatus(ctx, RefundStatusProcessing, uc.batchSize)
	if err != nil {
		uc.log.Errorf("failed to list processing refunds: %v", err)
		return 0, err
	}

	settled := 0
	for _, record := range records {
		result, err := uc.gateway.QueryRefund(ctx, record.RefundNo)
		if err != nil {
			uc.log.Warnf("sweep: gateway refund query failed for %s: %v", record.RefundNo, err)
			continue
		}
		updated, err := uc.refunds.ApplyRefundOutcome(ctx, record.RefundNo, result.Status, "")
		if err != nil {
			uc.log.Errorf("sweep: failed to settle refund %s: %v", record.RefundNo, err)
			continue
		}
		if updated.Status == RefundStatusCompleted || updated.Status == RefundStatusFailed {
			settled++
		}
	}

	uc.log.Infof("refund sweep finished: scanned=%d, settled=%d", len(records), settled)
	return settled, nil
}
