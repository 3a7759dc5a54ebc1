package data

import (
	"context"
	"errors"

	"xinyuan_tech/booking-service/internal/biz"
	"xinyuan_tech/booking-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// productRepo 商品仓库实现
type productRepo struct {
	data *Data
	log  *log.Helper
}

// NewProductRepo 创建商品仓库
func NewProductRepo(data *Data, logger log.Logger) biz.ProductRepo {
	return &productRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetProduct 获取商品
func (r *productRepo) GetProduct(ctx context.Context, productID uint64) (*biz.Product, error) {
	var m model.Product
	if err := r.data.DB(ctx).First(&m, "product_id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Errorf("Failed to get product %d: %v", productID, err)
		return nil, err
	}
	return &biz.Product{
		ID:           m.ID,
		Name:         m.Name,
		Description:  m.Description,
		Price:        m.Price,
		Stock:        m.Stock,
		BookingCount: m.BookingCount,
		MinAge:       m.MinAge,
		MaxAge:       m.MaxAge,
		Status:       m.Status,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}, nil
}

// IncrBookingCount 累加商品已预订数量
func (r *productRepo) IncrBookingCount(ctx context.Context, productID uint64, delta int64) error {
	err := r.data.DB(ctx).Model(&model.Product{}).
		Where("product_id = ?", productID).
		UpdateColumn("booking_count", gorm.Expr("booking_count + ?", delta)).Error
	if err != nil {
		r.log.Errorf("Failed to increment booking count for product %d: %v", productID, err)
		return err
	}
	return nil
}
