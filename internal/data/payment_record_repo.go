package data

import (
	"context"
	"errors"

	"xinyuan_tech/booking-service/internal/biz"
	"xinyuan_tech/booking-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// paymentRecordRepo 支付流水仓库实现
type paymentRecordRepo struct {
	data *Data
	log  *log.Helper
}

// NewPaymentRecordRepo 创建支付流水仓库
func NewPaymentRecordRepo(data *Data, logger log.Logger) biz.PaymentRecordRepo {
	return &paymentRecordRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// CreatePaymentRecord 追加支付流水, transaction_id 唯一索引兜底去重
func (r *paymentRecordRepo) CreatePaymentRecord(ctx context.Context, record *biz.PaymentRecord) error {
	m := &model.PaymentRecord{
		OrderID:       record.OrderID,
		TransactionID: record.TransactionID,
		Channel:       record.Channel,
		Amount:        record.Amount,
		Status:        record.Status,
		NotifyData:    record.NotifyData,
		CreatedAt:     record.CreatedAt,
	}
	if err := r.data.DB(ctx).Create(m).Error; err != nil {
		r.log.Errorf("Failed to create payment record for order %d: %v", record.OrderID, err)
		return err
	}
	record.ID = m.ID
	return nil
}

// GetLatestSuccess 查询订单最近一笔成功支付流水
func (r *paymentRecordRepo) GetLatestSuccess(ctx context.Context, orderID uint64) (*biz.PaymentRecord, error) {
	var m model.PaymentRecord
	err := r.data.DB(ctx).
		Where("order_id = ? AND status = ?", orderID, string(biz.OutcomeSuccess)).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &biz.PaymentRecord{
		ID:            m.ID,
		OrderID:       m.OrderID,
		TransactionID: m.TransactionID,
		Channel:       m.Channel,
		Amount:        m.Amount,
		Status:        m.Status,
		NotifyData:    m.NotifyData,
		CreatedAt:     m.CreatedAt,
	}, nil
}
