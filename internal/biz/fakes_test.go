package biz

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

func testLogger() log.Logger {
	return log.NewStdLogger(io.Discard)
}

// fakeTx 直接执行闭包, 模拟单机事务
type fakeTx struct{}

func (fakeTx) Exec(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// lockingTx 互斥串行化闭包, 模拟同一行锁下并发事务的先后执行
type lockingTx struct {
	mu sync.Mutex
}

func (t *lockingTx) Exec(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}

type fakeOrderRepo struct {
	orders    map[uint64]*Order
	nextID    uint64
	createErr error
	updateErr error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[uint64]*Order), nextID: 1}
}

func copyOrder(o *Order) *Order {
	c := *o
	c.Items = make([]*OrderItem, len(o.Items))
	for i, item := range o.Items {
		ic := *item
		c.Items[i] = &ic
	}
	return &c
}

func (r *fakeOrderRepo) put(order *Order) *Order {
	if order.ID == 0 {
		order.ID = r.nextID
		r.nextID++
	}
	for _, item := range order.Items {
		item.OrderID = order.ID
	}
	r.orders[order.ID] = copyOrder(order)
	return order
}

func (r *fakeOrderRepo) CreateOrder(ctx context.Context, order *Order) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.put(order)
	return nil
}

func (r *fakeOrderRepo) GetOrder(ctx context.Context, orderID uint64) (*Order, error) {
	if o, ok := r.orders[orderID]; ok {
		return copyOrder(o), nil
	}
	return nil, nil
}

func (r *fakeOrderRepo) GetOrderByNo(ctx context.Context, orderNo string) (*Order, error) {
	for _, o := range r.orders {
		if o.OrderNo == orderNo {
			return copyOrder(o), nil
		}
	}
	return nil, nil
}

func (r *fakeOrderRepo) GetOrderByNoForUpdate(ctx context.Context, orderNo string) (*Order, error) {
	return r.GetOrderByNo(ctx, orderNo)
}

func (r *fakeOrderRepo) GetOrderForUpdate(ctx context.Context, orderID uint64) (*Order, error) {
	return r.GetOrder(ctx, orderID)
}

func (r *fakeOrderRepo) UpdateOrder(ctx context.Context, order *Order) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.orders[order.ID]; !ok {
		return errors.New("order not found")
	}
	r.orders[order.ID] = copyOrder(order)
	return nil
}

func (r *fakeOrderRepo) ListUserOrders(ctx context.Context, userID uint64, page, pageSize int) ([]*Order, int, error) {
	var out []*Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *fakeOrderRepo) ListStalePendingOrders(ctx context.Context, olderThan time.Time, limit int) ([]*Order, error) {
	var out []*Order
	for _, o := range r.orders {
		if o.Status == OrderStatusPending && o.CreatedAt.Before(olderThan) {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakePaymentRepo struct {
	records   []*PaymentRecord
	createErr error
}

func (r *fakePaymentRepo) CreatePaymentRecord(ctx context.Context, record *PaymentRecord) error {
	if r.createErr != nil {
		return r.createErr
	}
	c := *record
	c.ID = uint64(len(r.records) + 1)
	record.ID = c.ID
	r.records = append(r.records, &c)
	return nil
}

func (r *fakePaymentRepo) GetLatestSuccess(ctx context.Context, orderID uint64) (*PaymentRecord, error) {
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].OrderID == orderID && r.records[i].Status == string(OutcomeSuccess) {
			c := *r.records[i]
			return &c, nil
		}
	}
	return nil, nil
}

type fakeProductRepo struct {
	products      map[uint64]*Product
	bookingCounts map[uint64]int64
}

func newFakeProductRepo(products ...*Product) *fakeProductRepo {
	r := &fakeProductRepo{products: make(map[uint64]*Product), bookingCounts: make(map[uint64]int64)}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeProductRepo) GetProduct(ctx context.Context, productID uint64) (*Product, error) {
	if p, ok := r.products[productID]; ok {
		c := *p
		return &c, nil
	}
	return nil, nil
}

func (r *fakeProductRepo) IncrBookingCount(ctx context.Context, productID uint64, delta int64) error {
	r.bookingCounts[productID] += delta
	return nil
}

type fakeStockCache struct {
	counters map[uint64]int64
	decrErr  error
	incrErr  error
}

func newFakeStockCache() *fakeStockCache {
	return &fakeStockCache{counters: make(map[uint64]int64)}
}

func (c *fakeStockCache) SeedIfAbsent(ctx context.Context, productID uint64, stock int64) error {
	if _, ok := c.counters[productID]; !ok {
		c.counters[productID] = stock
	}
	return nil
}

func (c *fakeStockCache) DecrBy(ctx context.Context, productID uint64, qty int64) (int64, error) {
	if c.decrErr != nil {
		return 0, c.decrErr
	}
	c.counters[productID] -= qty
	return c.counters[productID], nil
}

func (c *fakeStockCache) IncrBy(ctx context.Context, productID uint64, qty int64) (int64, error) {
	if c.incrErr != nil {
		return 0, c.incrErr
	}
	c.counters[productID] += qty
	return c.counters[productID], nil
}

type fakeGateway struct {
	prepayCode string
	chargeErr  error

	queryResult *ChargeStatus
	queryErr    error
	queryCalls  int

	refundResult *GatewayRefundResult
	refundErr    error
	refundCalls  int

	refundQueryResult *GatewayRefundResult
	refundQueryErr    error

	verifyErr   error
	verifyCalls int

	plaintext  []byte
	decryptErr error
}

func (g *fakeGateway) CreateCharge(ctx context.Context, description, orderNo string, amountTotal int64, payerRef string) (string, error) {
	if g.chargeErr != nil {
		return "", g.chargeErr
	}
	if g.prepayCode == "" {
		return "weixin://wxpay/bizpayurl?pr=test", nil
	}
	return g.prepayCode, nil
}

func (g *fakeGateway) QueryCharge(ctx context.Context, orderNo string) (*ChargeStatus, error) {
	g.queryCalls++
	if g.queryErr != nil {
		return nil, g.queryErr
	}
	return g.queryResult, nil
}

func (g *fakeGateway) Refund(ctx context.Context, orderNo, refundNo string, refundAmount, totalAmount int64, reason string) (*GatewayRefundResult, error) {
	g.refundCalls++
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	if g.refundResult == nil {
		return &GatewayRefundResult{RefundID: "wx-refund-1", Status: GatewayRefundProcessing}, nil
	}
	return g.refundResult, nil
}

func (g *fakeGateway) QueryRefund(ctx context.Context, refundNo string) (*GatewayRefundResult, error) {
	if g.refundQueryErr != nil {
		return nil, g.refundQueryErr
	}
	return g.refundQueryResult, nil
}

func (g *fakeGateway) VerifySignature(ctx context.Context, timestamp, nonce, rawBody, signature, certSerial string) error {
	g.verifyCalls++
	return g.verifyErr
}

func (g *fakeGateway) DecryptNotification(ctx context.Context, ciphertext, associatedData, nonce string) ([]byte, error) {
	if g.decryptErr != nil {
		return nil, g.decryptErr
	}
	return g.plaintext, nil
}

type fakeNotify struct {
	paidCalls   []string
	refundCalls []string
	err         error
}

func (n *fakeNotify) NotifyOrderPaid(ctx context.Context, userID uint64, orderNo string) error {
	n.paidCalls = append(n.paidCalls, orderNo)
	return n.err
}

func (n *fakeNotify) NotifyRefundResult(ctx context.Context, userID uint64, refundNo string, success bool) error {
	n.refundCalls = append(n.refundCalls, refundNo)
	return n.err
}

type fakeCacheInvalidator struct {
	invalidated []uint64
	tags        []string
}

func (c *fakeCacheInvalidator) InvalidateProductDetail(ctx context.Context, productID uint64) error {
	c.invalidated = append(c.invalidated, productID)
	return nil
}

func (c *fakeCacheInvalidator) InvalidateTag(ctx context.Context, tag string) error {
	c.tags = append(c.tags, tag)
	return nil
}

type fakeLimiter struct {
	allowed bool
	err     error
	calls   int
}

func (l *fakeLimiter) Allow(ctx context.Context, orderNo string) (bool, error) {
	l.calls++
	if l.err != nil {
		return false, l.err
	}
	return l.allowed, nil
}

type fakeRefundRepo struct {
	records   map[string]*RefundRecord
	createErr error
	updateErr error
}

func newFakeRefundRepo() *fakeRefundRepo {
	return &fakeRefundRepo{records: make(map[string]*RefundRecord)}
}

func (r *fakeRefundRepo) CreateRefund(ctx context.Context, record *RefundRecord) error {
	if r.createErr != nil {
		return r.createErr
	}
	record.ID = uint64(len(r.records) + 1)
	c := *record
	r.records[record.RefundNo] = &c
	return nil
}

func (r *fakeRefundRepo) GetRefundByNo(ctx context.Context, refundNo string) (*RefundRecord, error) {
	if rec, ok := r.records[refundNo]; ok {
		c := *rec
		return &c, nil
	}
	return nil, nil
}

func (r *fakeRefundRepo) GetRefundByNoForUpdate(ctx context.Context, refundNo string) (*RefundRecord, error) {
	return r.GetRefundByNo(ctx, refundNo)
}

func (r *fakeRefundRepo) UpdateRefund(ctx context.Context, record *RefundRecord) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	c := *record
	r.records[record.RefundNo] = &c
	return nil
}

func (r *fakeRefundRepo) GetActiveRefund(ctx context.Context, orderID uint64) (*RefundRecord, error) {
	for _, rec := range r.records {
		if rec.OrderID == orderID && rec.Status != RefundStatusRejected && rec.Status != RefundStatusFailed {
			c := *rec
			return &c, nil
		}
	}
	return nil, nil
}

func (r *fakeRefundRepo) ListRefundsByStatus(ctx context.Context, status RefundStatus, limit int) ([]*RefundRecord, error) {
	var out []*RefundRecord
	for _, rec := range r.records {
		if rec.Status == status {
			c := *rec
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
