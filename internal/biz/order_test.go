package biz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"xinyuan_tech/booking-service/internal/constants"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderEnv struct {
	orders      *OrderUsecase
	orderRepo   *fakeOrderRepo
	paymentRepo *fakePaymentRepo
	productRepo *fakeProductRepo
	cache       *fakeStockCache
	gateway     *fakeGateway
	invalidator *fakeCacheInvalidator
	notify      *fakeNotify
}

func newOrderEnv(products ...*Product) *orderEnv {
	env := &orderEnv{
		orderRepo:   newFakeOrderRepo(),
		paymentRepo: &fakePaymentRepo{},
		productRepo: newFakeProductRepo(products...),
		cache:       newFakeStockCache(),
		gateway:     &fakeGateway{},
		invalidator: &fakeCacheInvalidator{},
		notify:      &fakeNotify{},
	}
	logger := testLogger()
	stock := NewStockReserver(env.cache, logger)
	env.orders = NewOrderUsecase(fakeTx{}, env.orderRepo, env.paymentRepo, env.productRepo,
		stock, env.gateway, env.invalidator, env.notify, logger)
	return env
}

func testProduct() *Product {
	return &Product{
		ID:     1,
		Name:   "summer camp",
		Price:  decimal.NewFromFloat(99.50),
		Stock:  50,
		MinAge: 6,
		MaxAge: 12,
		Status: ProductStatusPublished,
	}
}

func seedPendingOrder(env *orderEnv, amount decimal.Decimal) *Order {
	now := time.Now().UTC().Add(-time.Hour)
	order := &Order{
		OrderNo:       fmt.Sprintf("BO100%d", env.orderRepo.nextID),
		UserID:        7,
		TotalAmount:   amount,
		ActualAmount:  amount,
		Status:        OrderStatusPending,
		PaymentStatus: PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
		Items: []*OrderItem{{
			ProductID:   1,
			ProductName: "summer camp",
			Price:       amount,
			Quantity:    1,
			CreatedAt:   now,
		}},
	}
	return env.orderRepo.put(order)
}

func successOutcome(order *Order) *PaymentOutcome {
	return &PaymentOutcome{
		Kind:          OutcomeSuccess,
		TransactionID: "wx-txn-1",
		SuccessTime:   "2026-08-30T12:00:00+08:00",
		AmountTotal:   order.ActualAmountFen(),
		Raw:           `{"trade_state":"SUCCESS"}`,
	}
}

func TestCreateOrder(t *testing.T) {
	env := newOrderEnv(testProduct())
	ctx := context.Background()

	projection, err := env.orders.CreateOrder(ctx, 7, &CreateOrderRequest{
		ProductID:      1,
		Quantity:       2,
		ParticipantAge: 8,
	})
	require.NoError(t, err)

	assert.Equal(t, OrderStatusPending, projection.Order.Status)
	assert.Equal(t, PaymentStatusPending, projection.Order.PaymentStatus)
	assert.Equal(t, "summer camp", projection.ProductName)
	assert.NotEmpty(t, projection.PrepayCode)
	assert.True(t, projection.Order.TotalAmount.Equal(decimal.NewFromFloat(199.00)))
	// 库存计数器从数据库值 seed 后扣减
	assert.Equal(t, int64(48), env.cache.counters[1])
	// 订单与快照已落库
	stored, err := env.orderRepo.GetOrderByNo(ctx, projection.Order.OrderNo)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, int64(2), stored.Items[0].Quantity)
}

func TestCreateOrderValidation(t *testing.T) {
	unpublished := testProduct()
	unpublished.ID = 2
	unpublished.Status = ProductStatusUnpublished
	lowStock := testProduct()
	lowStock.ID = 3
	lowStock.Stock = 1

	env := newOrderEnv(testProduct(), unpublished, lowStock)
	ctx := context.Background()

	tests := []struct {
		name   string
		req    *CreateOrderRequest
		reason string
	}{
		{"product not found", &CreateOrderRequest{ProductID: 99, Quantity: 1, ParticipantAge: 8}, "PRODUCT_NOT_FOUND"},
		{"product unpublished", &CreateOrderRequest{ProductID: 2, Quantity: 1, ParticipantAge: 8}, "PRODUCT_UNPUBLISHED"},
		{"insufficient stock", &CreateOrderRequest{ProductID: 3, Quantity: 2, ParticipantAge: 8}, "STOCK_INSUFFICIENT"},
		{"age below range", &CreateOrderRequest{ProductID: 1, Quantity: 1, ParticipantAge: 5}, "AGE_OUT_OF_RANGE"},
		{"age above range", &CreateOrderRequest{ProductID: 1, Quantity: 1, ParticipantAge: 13}, "AGE_OUT_OF_RANGE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.orders.CreateOrder(ctx, 7, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.reason, kerrors.FromError(err).Reason)
		})
	}
}

func TestCreateOrderReleasesReservationOnInsertFailure(t *testing.T) {
	env := newOrderEnv(testProduct())
	env.orderRepo.createErr = errors.New("deadlock")

	_, err := env.orders.CreateOrder(context.Background(), 7, &CreateOrderRequest{
		ProductID:      1,
		Quantity:       2,
		ParticipantAge: 8,
	})
	require.Error(t, err)
	assert.Equal(t, "ORDER_CREATE_FAILED", kerrors.FromError(err).Reason)
	// 预占库存已同步归还
	assert.Equal(t, int64(50), env.cache.counters[1])
}

func TestCreateOrderGatewayFailureKeepsOrderPending(t *testing.T) {
	env := newOrderEnv(testProduct())
	env.gateway.chargeErr = errors.New("dial tcp: timeout")
	ctx := context.Background()

	_, err := env.orders.CreateOrder(ctx, 7, &CreateOrderRequest{
		ProductID:      1,
		Quantity:       2,
		ParticipantAge: 8,
	})
	require.Error(t, err)
	assert.Equal(t, "GATEWAY_UNAVAILABLE", kerrors.FromError(err).Reason)

	// 订单保留 PENDING, 预占不回滚, 等待后续支付触发
	orders, _, listErr := env.orderRepo.ListUserOrders(ctx, 7, 1, 10)
	require.NoError(t, listErr)
	require.Len(t, orders, 1)
	assert.Equal(t, OrderStatusPending, orders[0].Status)
	assert.Equal(t, int64(48), env.cache.counters[1])
}

func TestApplyPaymentOutcomeSuccess(t *testing.T) {
	env := newOrderEnv(testProduct())
	ctx := context.Background()
	order := seedPendingOrder(env, decimal.NewFromFloat(99.50))

	updated, err := env.orders.ApplyPaymentOutcome(ctx, order.OrderNo, successOutcome(order))
	require.NoError(t, err)

	assert.Equal(t, OrderStatusPaid, updated.Status)
	assert.Equal(t, PaymentStatusSuccess, updated.PaymentStatus)
	require.NotNil(t, updated.PaidAt)

	require.Len(t, env.paymentRepo.records, 1)
	assert.Equal(t, "wx-txn-1", env.paymentRepo.records[0].TransactionID)
	assert.Equal(t, int64(1), env.productRepo.bookingCounts[1])
	assert.Equal(t, []string{order.OrderNo}, env.notify.paidCalls)
	assert.Equal(t, []uint64{1}, env.invalidator.invalidated)
	assert.Equal(t, []string{constants.CacheTagProductList}, env.invalidator.tags)
}

func TestApplyPaymentOutcomeIsIdempotent(t *testing.T) {
	env := newOrderEnv(testProduct())
	ctx := context.Background()
	order := seedPendingOrder(env, decimal.NewFromFloat(99.50))

	_, err := env.orders.ApplyPaymentOutcome(ctx, order.OrderNo, successOutcome(order))
	require.NoError(t, err)
	// 重复通知: 返回当前状态, 副作用不重复施加
	updated, err := env.orders.ApplyPaymentOutcome(ctx, order.OrderNo, successOutcome(order))
	require.NoError(t, err)

	assert.Equal(t, OrderStatusPaid, updated.Status)
	assert.Len(t, env.paymentRepo.records, 1)
	assert.Equal(t, int64(1), env.productRepo.bookingCounts[1])
	assert.Len(t, env.notify.paidCalls, 1)
}

func TestApplyPaymentOutcomeConcurrentTriggersSettleOnce(t *testing.T) {
	env := newOrderEnv(testProduct())
	logger := testLogger()
	env.orders = NewOrderUsecase(&lockingTx{}, env.orderRepo, env.paymentRepo, env.productRepo,
		NewStockReserver(env.cache, logger), env.gateway, env.invalidator, env.notify, logger)
	ctx := context.Background()
	order := seedPendingOrder(env, decimal.NewFromFloat(99.50))

	// 回调与主动查询同时到达: 行锁下后到的事务读到终态, 副作用只施加一次
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.orders.ApplyPaymentOutcome(ctx, order.OrderNo, successOutcome(order))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, _ := env.orderRepo.GetOrder(ctx, order.ID)
	assert.Equal(t, OrderStatusPaid, stored.Status)
	assert.Len(t, env.paymentRepo.records, 1)
	assert.Equal(t, int64(1), env.productRepo.bookingCounts[1])
	assert.Len(t, env.notify.paidCalls, 1)
}

func TestApplyPaymentOutcomeRejectsMalformedSuccess(t *testing.T) {
	env := newOrderEnv(testProduct())
	ctx := context.Background()
	order := seedPendingOrder(env, decimal.NewFromFloat(99.50))

	tests := []struct {
		name   string
		mutate func(o *PaymentOutcome)
		reason string
	}{
		{"empty transaction id", func(o *PaymentOutcome) { o.TransactionID = " " }, "PAYMENT_DATA_INTEGRITY"},
		{"empty success time", func(o *PaymentOutcome) { o.SuccessTime = "" }, "PAYMENT_DATA_INTEGRITY"},
		{"non-positive amount", func(o *PaymentOutcome) { o.AmountTotal = 0 }, "PAYMENT_DATA_INTEGRITY"},
		{"amount mismatch", func(o *PaymentOutcome) { o.AmountTotal = 100 }, "PAYMENT_AMOUNT_MISMATCH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := successOutcome(order)
			tt.mutate(outcome)

			_, err := env.orders.ApplyPaymentOutcome(ctx, order.OrderNo, outcome)
			require.Error(t, err)
			assert.Equal(t, tt.reason, kerrors.FromError(err).Reason)

			// 订单保持 PENDING, 未写入任何流水
			stored, _ := env.orderRepo.GetOrder(ctx, order.ID)
			assert.Equal(t, OrderStatusPending, stored.Status)
			assert.Empty(t, env.paymentRepo.records)
		})
	}
}

func TestApplyPaymentOutcomeClosedCancelsAndReleasesStock(t *testing.T) {
	env := newOrderEnv(testProduct())
	ctx := context.Background()
	order := seedPendingOrder(env, decimal.NewFromFloat(99.50))
	env.cache.counters[1] = 48

	updated, err := env.orders.ApplyPaymentOutcome(ctx, order.OrderNo, &PaymentOutcome{Kind: OutcomeClosed})
	require.NoError(t, err)

	assert.Equal(t, OrderStatusCancelled, updated.Status)
	assert.Equal(t, PaymentStatusCancelled, updated.PaymentStatus)
	require.NotNil(t, updated.CancelledAt)
	// 库存按快照数量归还
	assert.Equal(t, int64(49), env.cache.counters[1])
	assert.Empty(t, env.paymentRepo.records)
}

func TestApplyPaymentOutcomePendingIsNoop(t *testing.T) {
	env := newOrderEnv(testProduct())
	ctx := context.Background()
	order := seedPendingOrder(env, decimal.NewFromFloat(99.50))

	updated, err := env.orders.ApplyPaymentOutcome(ctx, order.OrderNo, &PaymentOutcome{Kind: OutcomePending})
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPending, updated.Status)
	assert.Empty(t, env.paymentRepo.records)
}

func TestApplyPaymentOutcomeUnknownOrder(t *testing.T) {
	env := newOrderEnv(testProduct())

	_, err := env.orders.ApplyPaymentOutcome(context.Background(), "BO-missing", &PaymentOutcome{Kind: OutcomeClosed})
	require.Error(t, err)
	assert.Equal(t, "ORDER_NOT_FOUND", kerrors.FromError(err).Reason)
}

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		allowed  bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPaid, OrderStatusRefunded, true},
		{OrderStatusPaid, OrderStatusCompleted, true},
		{OrderStatusPending, OrderStatusRefunded, false},
		{OrderStatusPaid, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusPaid, false},
		{OrderStatusRefunded, OrderStatusPaid, false},
		{OrderStatusCompleted, OrderStatusRefunded, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestDerivePaymentStatus(t *testing.T) {
	assert.Equal(t, PaymentStatusPending, DerivePaymentStatus(OrderStatusPending))
	assert.Equal(t, PaymentStatusSuccess, DerivePaymentStatus(OrderStatusPaid))
	assert.Equal(t, PaymentStatusSuccess, DerivePaymentStatus(OrderStatusRefunded))
	assert.Equal(t, PaymentStatusSuccess, DerivePaymentStatus(OrderStatusCompleted))
	assert.Equal(t, PaymentStatusCancelled, DerivePaymentStatus(OrderStatusCancelled))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(9950), MinorUnits(decimal.NewFromFloat(99.50)))
	assert.Equal(t, int64(100), MinorUnits(decimal.NewFromInt(1)))
	assert.Equal(t, int64(1), MinorUnits(decimal.NewFromFloat(0.01)))
}
