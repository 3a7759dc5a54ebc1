package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"xinyuan_tech/booking-service/internal/constants"
	bizerrors "xinyuan_tech/booking-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// OrderStatus 订单状态 (唯一权威状态字段)
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRefunded  OrderStatus = "REFUNDED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
)

// PaymentStatus 支付状态, 由订单状态推导, 不允许独立写入
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusSuccess   PaymentStatus = "SUCCESS"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// allowedTransitions 订单状态流转表
var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending: {
		OrderStatusPaid:      true,
		OrderStatusCancelled: true,
	},
	OrderStatusPaid: {
		OrderStatusRefunded:  true,
		OrderStatusCompleted: true,
	},
	OrderStatusCancelled: {},
	OrderStatusRefunded:  {},
	OrderStatusCompleted: {},
}

// CanTransition 判断状态流转是否合法
func CanTransition(from, to OrderStatus) bool {
	next, ok := allowedTransitions[from]
	return ok && next[to]
}

// Terminal 是否为终态: applyOutcome 不再对终态订单重复施加副作用
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusPaid, OrderStatusCancelled, OrderStatusRefunded, OrderStatusCompleted:
		return true
	}
	return false
}

// DerivePaymentStatus 从订单状态推导支付状态
func DerivePaymentStatus(s OrderStatus) PaymentStatus {
	switch s {
	case OrderStatusPaid, OrderStatusRefunded, OrderStatusCompleted:
		return PaymentStatusSuccess
	case OrderStatusCancelled:
		return PaymentStatusCancelled
	default:
		return PaymentStatusPending
	}
}

// Order 订单聚合根
type Order struct {
	ID            uint64
	OrderNo       string
	UserID        uint64
	TotalAmount   decimal.Decimal
	ActualAmount  decimal.Decimal
	Status        OrderStatus
	PaymentStatus PaymentStatus
	PaidAt        *time.Time
	CancelledAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Items         []*OrderItem
}

// SetStatus 按流转表变更状态并同步推导支付状态
func (o *Order) SetStatus(to OrderStatus) error {
	if !CanTransition(o.Status, to) {
		return bizerrors.ErrInvalidTransition(string(o.Status), string(to))
	}
	o.Status = to
	o.PaymentStatus = DerivePaymentStatus(to)
	return nil
}

// ActualAmountFen 订单实付金额, 单位分
func (o *Order) ActualAmountFen() int64 {
	return MinorUnits(o.ActualAmount)
}

// OrderItem 下单时的商品快照, 创建后不再变更
type OrderItem struct {
	ID          uint64
	OrderID     uint64
	ProductID   uint64
	ProductName string
	Price       decimal.Decimal
	Quantity    int64
	CreatedAt   time.Time
}

// PaymentRecord 支付流水, 每笔真实支付成功只追加一条
type PaymentRecord struct {
	ID            uint64
	OrderID       uint64
	TransactionID string
	Channel       string
	Amount        decimal.Decimal
	Status        string
	NotifyData    string
	CreatedAt     time.Time
}

// MinorUnits 金额转最小货币单位(分)
func MinorUnits(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Transaction 事务执行接口, 由 data 层实现
type Transaction interface {
	Exec(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepo 订单仓库接口
type OrderRepo interface {
	CreateOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, orderID uint64) (*Order, error)
	GetOrderByNo(ctx context.Context, orderNo string) (*Order, error)
	// GetOrderByNoForUpdate 行锁读取, 只能在事务内调用
	GetOrderByNoForUpdate(ctx context.Context, orderNo string) (*Order, error)
	// GetOrderForUpdate 按主键行锁读取, 只能在事务内调用
	GetOrderForUpdate(ctx context.Context, orderID uint64) (*Order, error)
	UpdateOrder(ctx context.Context, order *Order) error
	ListUserOrders(ctx context.Context, userID uint64, page, pageSize int) ([]*Order, int, error)
	// ListStalePendingOrders 查询超出支付窗口仍处于 PENDING 的订单, 供对账任务使用
	ListStalePendingOrders(ctx context.Context, olderThan time.Time, limit int) ([]*Order, error)
}

// PaymentRecordRepo 支付流水仓库接口
type PaymentRecordRepo interface {
	CreatePaymentRecord(ctx context.Context, record *PaymentRecord) error
	// GetLatestSuccess 查询订单最近一笔成功支付流水, 退款金额以此为准
	GetLatestSuccess(ctx context.Context, orderID uint64) (*PaymentRecord, error)
}

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	ProductID      uint64
	Quantity       int64
	ParticipantAge int
}

// OrderProjection 创建订单的返回投影, 携带商品快照与支付凭证
type OrderProjection struct {
	Order       *Order
	ProductName string
	PrepayCode  string
}

// OrderUsecase 订单生命周期管理: 订单创建与支付结果的唯一落定入口
type OrderUsecase struct {
	tx          Transaction
	orderRepo   OrderRepo
	paymentRepo PaymentRecordRepo
	productRepo ProductRepo
	stock       *StockReserver
	gateway     GatewayClient
	cache       CacheInvalidator
	notify      NotificationClient
	log         *log.Helper
}

// NewOrderUsecase 创建订单用例
func NewOrderUsecase(
	tx Transaction,
	orderRepo OrderRepo,
	paymentRepo PaymentRecordRepo,
	productRepo ProductRepo,
	stock *StockReserver,
	gateway GatewayClient,
	cache CacheInvalidator,
	notify NotificationClient,
	logger log.Logger,
) *OrderUsecase {
	return &OrderUsecase{
		tx:          tx,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		productRepo: productRepo,
		stock:       stock,
		gateway:     gateway,
		cache:       cache,
		notify:      notify,
		log:         log.NewHelper(logger),
	}
}

// newOrderNo 生成商户订单号
func newOrderNo(userID uint64) string {
	return fmt.Sprintf("BO%d%04d", time.Now().UnixNano(), userID%10000)
}

// CreateOrder 创建订单
// 校验商品与业务规则 -> 预占库存 -> 单事务写入订单与快照 -> 创建预支付交易
// 事务失败时必须先归还预占库存再向上抛错
func (uc *OrderUsecase) CreateOrder(ctx context.Context, userID uint64, req *CreateOrderRequest) (*OrderProjection, error) {
	uc.log.Infof("CreateOrder: userID=%d, productID=%d, quantity=%d", userID, req.ProductID, req.Quantity)

	product, err := uc.productRepo.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, bizerrors.ErrProductNotFound(req.ProductID)
	}
	if !product.Published() {
		return nil, bizerrors.ErrProductUnpublished(req.ProductID)
	}
	if product.Stock < req.Quantity {
		return nil, bizerrors.ErrStockInsufficient(req.ProductID)
	}
	if !product.AgeAllowed(req.ParticipantAge) {
		return nil, bizerrors.ErrAgeOutOfRange(req.ParticipantAge, product.MinAge, product.MaxAge)
	}

	// 预占库存: 缓存计数器是唯一的互斥点
	if err := uc.stock.EnsureSeeded(ctx, product.ID, product.Stock); err != nil {
		return nil, bizerrors.ErrStockInsufficient(req.ProductID)
	}
	ok, err := uc.stock.Reserve(ctx, product.ID, req.Quantity)
	if err != nil || !ok {
		return nil, bizerrors.ErrStockInsufficient(req.ProductID)
	}

	now := time.Now().UTC()
	total := product.Price.Mul(decimal.NewFromInt(req.Quantity))
	order := &Order{
		OrderNo:       newOrderNo(userID),
		UserID:        userID,
		TotalAmount:   total,
		ActualAmount:  total,
		Status:        OrderStatusPending,
		PaymentStatus: PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
		Items: []*OrderItem{{
			ProductID:   product.ID,
			ProductName: product.Name,
			Price:       product.Price,
			Quantity:    req.Quantity,
			CreatedAt:   now,
		}},
	}

	err = uc.tx.Exec(ctx, func(ctx context.Context) error {
		return uc.orderRepo.CreateOrder(ctx, order)
	})
	if err != nil {
		// 数据库写入失败, 同步归还预占库存后再向上抛错
		uc.stock.Release(ctx, product.ID, req.Quantity)
		uc.log.Errorf("order insert failed, reservation released: %v", err)
		return nil, bizerrors.ErrOrderCreateFailed(err)
	}

	description := fmt.Sprintf("booking: %s x%d", product.Name, req.Quantity)
	prepayCode, err := uc.gateway.CreateCharge(ctx, description, order.OrderNo, order.ActualAmountFen(), fmt.Sprintf("%d", userID))
	if err != nil {
		// 订单已落库, 保持 PENDING 等待后续支付触发, 不回滚
		uc.log.Errorf("create charge failed for order %s: %v", order.OrderNo, err)
		return nil, bizerrors.ErrGatewayUnavailable(err)
	}

	return &OrderProjection{
		Order:       order,
		ProductName: product.Name,
		PrepayCode:  prepayCode,
	}, nil
}

// validateSuccessOutcome 校验支付成功数据的完整性, 不完整的成功数据宁可拒绝也不能采信
func validateSuccessOutcome(order *Order, outcome *PaymentOutcome) error {
	if strings.TrimSpace(outcome.TransactionID) == "" {
		return bizerrors.ErrPaymentDataIntegrity("transaction id is empty")
	}
	if strings.TrimSpace(outcome.SuccessTime) == "" {
		return bizerrors.ErrPaymentDataIntegrity("success time is empty")
	}
	if outcome.AmountTotal <= 0 {
		return bizerrors.ErrPaymentDataIntegrity("amount is not positive")
	}
	if expected := order.ActualAmountFen(); outcome.AmountTotal != expected {
		return bizerrors.ErrPaymentAmountMismatch(outcome.AmountTotal, expected)
	}
	return nil
}

// ApplyPaymentOutcome 支付结果的唯一落定入口, 回调/主动查询/对账任务全部经由此处
// 终态幂等检查与状态变更在同一事务内完成 (行锁), 保证副作用恰好施加一次
func (uc *OrderUsecase) ApplyPaymentOutcome(ctx context.Context, orderNo string, outcome *PaymentOutcome) (*Order, error) {
	var (
		result        *Order
		appliedPaid   bool
		appliedCancel bool
	)

	err := uc.tx.Exec(ctx, func(ctx context.Context) error {
		order, err := uc.orderRepo.GetOrderByNoForUpdate(ctx, orderNo)
		if err != nil {
			return err
		}
		if order == nil {
			return bizerrors.ErrOrderNotFound()
		}

		// 幂等守卫: 已到终态的订单直接返回当前状态, 不重复施加副作用
		if order.Status.Terminal() {
			result = order
			return nil
		}

		switch outcome.Kind {
		case OutcomeSuccess:
			if err := validateSuccessOutcome(order, outcome); err != nil {
				return err
			}
			if err := order.SetStatus(OrderStatusPaid); err != nil {
				return err
			}
			now := time.Now().UTC()
			order.PaidAt = &now
			order.UpdatedAt = now
			if err := uc.orderRepo.UpdateOrder(ctx, order); err != nil {
				return err
			}
			if err := uc.paymentRepo.CreatePaymentRecord(ctx, &PaymentRecord{
				OrderID:       order.ID,
				TransactionID: outcome.TransactionID,
				Channel:       constants.PaymentChannelWechat,
				Amount:        order.ActualAmount,
				Status:        string(OutcomeSuccess),
				NotifyData:    outcome.Raw,
				CreatedAt:     now,
			}); err != nil {
				return err
			}
			for _, item := range order.Items {
				if err := uc.productRepo.IncrBookingCount(ctx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
			result = order
			appliedPaid = true
			return nil

		case OutcomeClosed:
			if err := order.SetStatus(OrderStatusCancelled); err != nil {
				return err
			}
			now := time.Now().UTC()
			order.CancelledAt = &now
			order.UpdatedAt = now
			if err := uc.orderRepo.UpdateOrder(ctx, order); err != nil {
				return err
			}
			result = order
			appliedCancel = true
			return nil

		default:
			// pending: 不做任何变更
			result = order
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	// 事务外的副作用均为尽力而为, 失败不回滚状态变更
	if appliedPaid {
		for _, item := range result.Items {
			if err := uc.cache.InvalidateProductDetail(ctx, item.ProductID); err != nil {
				uc.log.Warnf("invalidate product %d detail cache failed: %v", item.ProductID, err)
			}
		}
		// 预订量变化影响列表排序, 按标签批量失效列表缓存
		if err := uc.cache.InvalidateTag(ctx, constants.CacheTagProductList); err != nil {
			uc.log.Warnf("invalidate product list cache tag failed: %v", err)
		}
		if err := uc.notify.NotifyOrderPaid(ctx, result.UserID, result.OrderNo); err != nil {
			uc.log.Warnf("order paid notification failed for %s: %v", result.OrderNo, err)
		}
		uc.log.Infof("order %s settled as PAID, transaction %s", result.OrderNo, outcome.TransactionID)
	}
	if appliedCancel {
		for _, item := range result.Items {
			uc.stock.Release(ctx, item.ProductID, item.Quantity)
		}
		uc.log.Infof("order %s settled as CANCELLED", result.OrderNo)
	}

	return result, nil
}

// GetOrder 查询订单详情
func (uc *OrderUsecase) GetOrder(ctx context.Context, orderID uint64) (*Order, error) {
	order, err := uc.orderRepo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, bizerrors.ErrOrderNotFound()
	}
	return order, nil
}

// ListUserOrders 分页查询用户订单
func (uc *OrderUsecase) ListUserOrders(ctx context.Context, userID uint64, page, pageSize int) ([]*Order, int, error) {
	return uc.orderRepo.ListUserOrders(ctx, userID, page, pageSize)
}
