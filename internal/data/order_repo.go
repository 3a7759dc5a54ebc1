package data

import (
	"context"
	"errors"
	"time"

	"xinyuan_tech/booking-service/internal/biz"
	"xinyuan_tech/booking-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// orderRepo 订单仓库实现
type orderRepo struct {
	data *Data
	log  *log.Helper
}

// NewOrderRepo 创建订单仓库
func NewOrderRepo(data *Data, logger log.Logger) biz.OrderRepo {
	return &orderRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func toOrderModel(order *biz.Order) *model.Order {
	return &model.Order{
		ID:            order.ID,
		OrderNo:       order.OrderNo,
		UserID:        order.UserID,
		TotalAmount:   order.TotalAmount,
		ActualAmount:  order.ActualAmount,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		PaidAt:        order.PaidAt,
		CancelledAt:   order.CancelledAt,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
}

func toOrderBiz(m *model.Order, items []*model.OrderItem) *biz.Order {
	order := &biz.Order{
		ID:            m.ID,
		OrderNo:       m.OrderNo,
		UserID:        m.UserID,
		TotalAmount:   m.TotalAmount,
		ActualAmount:  m.ActualAmount,
		Status:        biz.OrderStatus(m.Status),
		PaymentStatus: biz.PaymentStatus(m.PaymentStatus),
		PaidAt:        m.PaidAt,
		CancelledAt:   m.CancelledAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	for _, item := range items {
		order.Items = append(order.Items, &biz.OrderItem{
			ID:          item.ID,
			OrderID:     item.OrderID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Price:       item.Price,
			Quantity:    item.Quantity,
			CreatedAt:   item.CreatedAt,
		})
	}
	return order
}

// CreateOrder 创建订单与商品快照, 必须在事务内调用
func (r *orderRepo) CreateOrder(ctx context.Context, order *biz.Order) error {
	db := r.data.DB(ctx)

	m := toOrderModel(order)
	if err := db.Create(m).Error; err != nil {
		r.log.Errorf("Failed to create order %s: %v", order.OrderNo, err)
		return err
	}
	order.ID = m.ID

	for _, item := range order.Items {
		im := &model.OrderItem{
			OrderID:     m.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Price:       item.Price,
			Quantity:    item.Quantity,
			CreatedAt:   item.CreatedAt,
		}
		if err := db.Create(im).Error; err != nil {
			r.log.Errorf("Failed to create order item for order %s: %v", order.OrderNo, err)
			return err
		}
		item.ID = im.ID
		item.OrderID = m.ID
	}
	return nil
}

func (r *orderRepo) loadItems(ctx context.Context, orderID uint64) ([]*model.OrderItem, error) {
	var items []*model.OrderItem
	if err := r.data.DB(ctx).Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *orderRepo) getOrder(ctx context.Context, locking bool, query string, args ...interface{}) (*biz.Order, error) {
	db := r.data.DB(ctx)
	if locking {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var m model.Order
	if err := db.Where(query, args...).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	items, err := r.loadItems(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	return toOrderBiz(&m, items), nil
}

// GetOrder 获取订单
func (r *orderRepo) GetOrder(ctx context.Context, orderID uint64) (*biz.Order, error) {
	return r.getOrder(ctx, false, "order_id = ?", orderID)
}

// GetOrderByNo 按订单号获取订单
func (r *orderRepo) GetOrderByNo(ctx context.Context, orderNo string) (*biz.Order, error) {
	return r.getOrder(ctx, false, "order_no = ?", orderNo)
}

// GetOrderByNoForUpdate 按订单号行锁读取
func (r *orderRepo) GetOrderByNoForUpdate(ctx context.Context, orderNo string) (*biz.Order, error) {
	return r.getOrder(ctx, true, "order_no = ?", orderNo)
}

// GetOrderForUpdate 按主键行锁读取
func (r *orderRepo) GetOrderForUpdate(ctx context.Context, orderID uint64) (*biz.Order, error) {
	return r.getOrder(ctx, true, "order_id = ?", orderID)
}

// UpdateOrder 更新订单
func (r *orderRepo) UpdateOrder(ctx context.Context, order *biz.Order) error {
	if err := r.data.DB(ctx).Save(toOrderModel(order)).Error; err != nil {
		r.log.Errorf("Failed to update order %s: %v", order.OrderNo, err)
		return err
	}
	return nil
}

// ListUserOrders 分页查询用户订单
func (r *orderRepo) ListUserOrders(ctx context.Context, userID uint64, page, pageSize int) ([]*biz.Order, int, error) {
	db := r.data.DB(ctx)

	var total int64
	if err := db.Model(&model.Order{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []*model.Order
	offset := (page - 1) * pageSize
	if err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(pageSize).
		Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	orders := make([]*biz.Order, 0, len(ms))
	for _, m := range ms {
		items, err := r.loadItems(ctx, m.ID)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, toOrderBiz(m, items))
	}
	return orders, int(total), nil
}

// ListStalePendingOrders 查询超出支付窗口仍处于 PENDING 的订单
func (r *orderRepo) ListStalePendingOrders(ctx context.Context, olderThan time.Time, limit int) ([]*biz.Order, error) {
	var ms []*model.Order
	if err := r.data.DB(ctx).
		Where("status = ? AND created_at < ?", string(biz.OrderStatusPending), olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&ms).Error; err != nil {
		return nil, err
	}

	orders := make([]*biz.Order, 0, len(ms))
	for _, m := range ms {
		items, err := r.loadItems(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		orders = append(orders, toOrderBiz(m, items))
	}
	return orders, nil
}
