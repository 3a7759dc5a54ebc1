package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	bizerrors "xinyuan_tech/booking-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RefundStatus 退款单状态
type RefundStatus string

const (
	RefundStatusPending    RefundStatus = "PENDING"
	RefundStatusApproved   RefundStatus = "APPROVED"
	RefundStatusRejected   RefundStatus = "REJECTED"
	RefundStatusProcessing RefundStatus = "PROCESSING"
	RefundStatusCompleted  RefundStatus = "COMPLETED"
	RefundStatusFailed     RefundStatus = "FAILED"
)

// 网关退款状态(与微信 APIv3 保持一致)
const (
	GatewayRefundSuccess    = "SUCCESS"
	GatewayRefundClosed     = "CLOSED"
	GatewayRefundProcessing = "PROCESSING"
	GatewayRefundAbnormal   = "ABNORMAL"
)

// RefundRecord 退款单, 一次退款申请对应一条记录
// 通过 PENDING 前置条件保证一个订单同时最多一条未被驳回的在途退款单
type RefundRecord struct {
	ID             uint64
	RefundNo       string
	OrderID        uint64
	Amount         decimal.Decimal
	Status         RefundStatus
	Reason         string
	ApprovedBy     uint64
	ApproveNote    string
	ApprovedAt     *time.Time
	RejectedBy     uint64
	RejectReason   string
	RejectedAt     *time.Time
	WechatRefundID string
	FailReason     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RefundRepo 退款单仓库接口
type RefundRepo interface {
	CreateRefund(ctx context.Context, record *RefundRecord) error
	GetRefundByNo(ctx context.Context, refundNo string) (*RefundRecord, error)
	// GetRefundByNoForUpdate 行锁读取, 只能在事务内调用
	GetRefundByNoForUpdate(ctx context.Context, refundNo string) (*RefundRecord, error)
	UpdateRefund(ctx context.Context, record *RefundRecord) error
	// GetActiveRefund 查询订单未被驳回且未失败终结的在途退款单
	GetActiveRefund(ctx context.Context, orderID uint64) (*RefundRecord, error)
	// ListRefundsByStatus 按状态批量查询, 供对账任务使用
	ListRefundsByStatus(ctx context.Context, status RefundStatus, limit int) ([]*RefundRecord, error)
}

// RefundUsecase 退款工作流: 审批与网关清算两阶段解耦,
// 网关故障永远不阻塞审批留痕
type RefundUsecase struct {
	tx          Transaction
	refundRepo  RefundRepo
	orderRepo   OrderRepo
	paymentRepo PaymentRecordRepo
	stock       *StockReserver
	gateway     GatewayClient
	notify      NotificationClient
	log         *log.Helper
}

// NewRefundUsecase 创建退款用例
func NewRefundUsecase(
	tx Transaction,
	refundRepo RefundRepo,
	orderRepo OrderRepo,
	paymentRepo PaymentRecordRepo,
	stock *StockReserver,
	gateway GatewayClient,
	notify NotificationClient,
	logger log.Logger,
) *RefundUsecase {
	return &RefundUsecase{
		tx:          tx,
		refundRepo:  refundRepo,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		stock:       stock,
		gateway:     gateway,
		notify:      notify,
		log:         log.NewHelper(logger),
	}
}

// newRefundNo 生成商户退款单号
func newRefundNo() string {
	return "RF" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// RequestRefund 买家发起退款申请, 创建 PENDING 退款单
func (uc *RefundUsecase) RequestRefund(ctx context.Context, userID, orderID uint64, reason string) (*RefundRecord, error) {
	order, err := uc.orderRepo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, bizerrors.ErrOrderNotFound()
	}
	if order.UserID != userID {
		return nil, bizerrors.ErrOrderNotOwner()
	}
	if order.Status != OrderStatusPaid {
		return nil, bizerrors.ErrInvalidTransition(string(order.Status), string(OrderStatusRefunded))
	}

	active, err := uc.refundRepo.GetActiveRefund(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, bizerrors.ErrRefundActiveExists(order.OrderNo)
	}

	now := time.Now().UTC()
	record := &RefundRecord{
		RefundNo:  newRefundNo(),
		OrderID:   orderID,
		Amount:    order.ActualAmount,
		Status:    RefundStatusPending,
		Reason:    reason,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.refundRepo.CreateRefund(ctx, record); err != nil {
		return nil, err
	}
	uc.log.Infof("refund %s requested for order %s by user %d", record.RefundNo, order.OrderNo, userID)
	return record, nil
}

// Approve 管理员批准退款
// 单事务内: 退款单 PENDING -> APPROVED, 订单 PAID -> REFUNDED;
// 事务提交后尽力调用网关退款, 网关故障时退款单停留在 APPROVED 等待人工重试
func (uc *RefundUsecase) Approve(ctx context.Context, refundNo, note string, adminID uint64) (*RefundRecord, error) {
	var (
		record *RefundRecord
		order  *Order
	)

	err := uc.tx.Exec(ctx, func(ctx context.Context) error {
		rec, err := uc.refundRepo.GetRefundByNoForUpdate(ctx, refundNo)
		if err != nil {
			return err
		}
		if rec == nil {
			return bizerrors.ErrRefundNotFound()
		}
		if rec.Status != RefundStatusPending {
			return bizerrors.ErrRefundNotPending(string(rec.Status))
		}

		ord, err := uc.orderRepo.GetOrderForUpdate(ctx, rec.OrderID)
		if err != nil {
			return err
		}
		if ord == nil {
			return bizerrors.ErrOrderNotFound()
		}
		if err := ord.SetStatus(OrderStatusRefunded); err != nil {
			return err
		}

		now := time.Now().UTC()
		ord.UpdatedAt = now
		rec.Status = RefundStatusApproved
		rec.ApprovedBy = adminID
		rec.ApproveNote = note
		rec.ApprovedAt = &now
		rec.UpdatedAt = now

		if err := uc.refundRepo.UpdateRefund(ctx, rec); err != nil {
			return err
		}
		if err := uc.orderRepo.UpdateOrder(ctx, ord); err != nil {
			return err
		}

		record = rec
		order = ord
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 审批已留痕: 库存归还与网关清算在事务外尽力执行
	for _, item := range order.Items {
		uc.stock.Release(ctx, item.ProductID, item.Quantity)
	}
	if err := uc.settle(ctx, record, order); err != nil {
		uc.log.Warnf("refund %s settlement deferred, record stays %s: %v", record.RefundNo, record.Status, err)
	}

	uc.log.Infof("refund %s approved by admin %d, order %s -> REFUNDED", record.RefundNo, adminID, order.OrderNo)
	return record, nil
}

// settle 调用网关发起退款, 受理成功后退款单进入 PROCESSING
// 金额取退款单金额, 订单总额取最近一笔成功支付流水
func (uc *RefundUsecase) settle(ctx context.Context, record *RefundRecord, order *Order) error {
	payment, err := uc.paymentRepo.GetLatestSuccess(ctx, order.ID)
	if err != nil {
		return err
	}
	if payment == nil {
		return fmt.Errorf("no successful payment record for order %s", order.OrderNo)
	}

	result, err := uc.gateway.Refund(ctx, order.OrderNo, record.RefundNo,
		MinorUnits(record.Amount), MinorUnits(payment.Amount), record.Reason)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	record.Status = RefundStatusProcessing
	record.WechatRefundID = result.RefundID
	record.FailReason = ""
	record.UpdatedAt = now
	if err := uc.refundRepo.UpdateRefund(ctx, record); err != nil {
		return err
	}
	uc.log.Infof("refund %s accepted by gateway, refund_id=%s", record.RefundNo, result.RefundID)
	return nil
}

// Reject 管理员驳回退款
// 驳回理由为空一律拒绝; 订单状态不受影响, 保持 PAID
func (uc *RefundUsecase) Reject(ctx context.Context, refundNo, reason string, adminID uint64) (*RefundRecord, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, bizerrors.ErrRefundReasonRequired()
	}

	var record *RefundRecord
	err := uc.tx.Exec(ctx, func(ctx context.Context) error {
		rec, err := uc.refundRepo.GetRefundByNoForUpdate(ctx, refundNo)
		if err != nil {
			return err
		}
		if rec == nil {
			return bizerrors.ErrRefundNotFound()
		}
		if rec.Status != RefundStatusPending {
			return bizerrors.ErrRefundNotPending(string(rec.Status))
		}

		now := time.Now().UTC()
		rec.Status = RefundStatusRejected
		rec.RejectedBy = adminID
		rec.RejectReason = reason
		rec.RejectedAt = &now
		rec.UpdatedAt = now
		if err := uc.refundRepo.UpdateRefund(ctx, rec); err != nil {
			return err
		}
		record = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.log.Infof("refund %s rejected by admin %d: %s", record.RefundNo, adminID, reason)
	return record, nil
}

// Retry 重试网关清算
// 接受 FAILED 与停留在 APPROVED (受理时网关故障) 的退款单;
// 网关再次失败时不抛错, 把失败原因写回退款单由调用方决定是否继续重试
func (uc *RefundUsecase) Retry(ctx context.Context, refundNo string, adminID uint64) (*RefundRecord, error) {
	record, err := uc.refundRepo.GetRefundByNo(ctx, refundNo)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, bizerrors.ErrRefundNotFound()
	}
	if record.Status != RefundStatusFailed && record.Status != RefundStatusApproved {
		return nil, bizerrors.ErrRefundNotFailed(string(record.Status))
	}

	order, err := uc.orderRepo.GetOrder(ctx, record.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, bizerrors.ErrOrderNotFound()
	}

	if err := uc.settle(ctx, record, order); err != nil {
		record.FailReason = err.Error()
		record.UpdatedAt = time.Now().UTC()
		if updateErr := uc.refundRepo.UpdateRefund(ctx, record); updateErr != nil {
			uc.log.Errorf("failed to persist retry failure for refund %s: %v", record.RefundNo, updateErr)
		}
		uc.log.Warnf("refund %s retry by admin %d failed: %v", record.RefundNo, adminID, err)
		return record, nil
	}

	uc.log.Infof("refund %s retried by admin %d, now PROCESSING", record.RefundNo, adminID)
	return record, nil
}

// ApplyRefundOutcome 退款结果的唯一落定入口, 回调与对账任务共用
// 只有 PROCESSING 退款单会被变更, 其余状态幂等返回
func (uc *RefundUsecase) ApplyRefundOutcome(ctx context.Context, refundNo, gatewayStatus, failReason string) (*RefundRecord, error) {
	var (
		record  *RefundRecord
		settled bool
	)

	err := uc.tx.Exec(ctx, func(ctx context.Context) error {
		rec, err := uc.refundRepo.GetRefundByNoForUpdate(ctx, refundNo)
		if err != nil {
			return err
		}
		if rec == nil {
			return bizerrors.ErrRefundNotFound()
		}

		// 幂等守卫: 非 PROCESSING 状态不再变更
		if rec.Status != RefundStatusProcessing {
			record = rec
			return nil
		}

		switch gatewayStatus {
		case GatewayRefundSuccess:
			rec.Status = RefundStatusCompleted
		case GatewayRefundClosed, GatewayRefundAbnormal:
			rec.Status = RefundStatusFailed
			rec.FailReason = failReason
			if rec.FailReason == "" {
				rec.FailReason = fmt.Sprintf("gateway reported %s", gatewayStatus)
			}
		default:
			// 仍在处理中
			record = rec
			return nil
		}

		rec.UpdatedAt = time.Now().UTC()
		if err := uc.refundRepo.UpdateRefund(ctx, rec); err != nil {
			return err
		}
		record = rec
		settled = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if settled {
		order, err := uc.orderRepo.GetOrder(ctx, record.OrderID)
		if err == nil && order != nil {
			if notifyErr := uc.notify.NotifyRefundResult(ctx, order.UserID, record.RefundNo, record.Status == RefundStatusCompleted); notifyErr != nil {
				uc.log.Warnf("refund result notification failed for %s: %v", record.RefundNo, notifyErr)
			}
		}
		uc.log.Infof("refund %s settled as %s", record.RefundNo, record.Status)
	}

	return record, nil
}

// GetRefund 查询退款单
func (uc *RefundUsecase) GetRefund(ctx context.Context, refundNo string) (*RefundRecord, error) {
	record, err := uc.refundRepo.GetRefundByNo(ctx, refundNo)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, bizerrors.ErrRefundNotFound()
	}
	return record, nil
}
