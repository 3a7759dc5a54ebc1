package data

import (
	"context"
	"errors"

	"xinyuan_tech/booking-service/internal/biz"
	"xinyuan_tech/booking-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// refundRepo 退款单仓库实现
type refundRepo struct {
	data *Data
	log  *log.Helper
}

// NewRefundRepo 创建退款单仓库
func NewRefundRepo(data *Data, logger log.Logger) biz.RefundRepo {
	return &refundRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func toRefundModel(record *biz.RefundRecord) *model.RefundRecord {
	return &model.RefundRecord{
		ID:             record.ID,
		RefundNo:       record.RefundNo,
		OrderID:        record.OrderID,
		Amount:         record.Amount,
		Status:         string(record.Status),
		Reason:         record.Reason,
		ApprovedBy:     record.ApprovedBy,
		ApproveNote:    record.ApproveNote,
		ApprovedAt:     record.ApprovedAt,
		RejectedBy:     record.RejectedBy,
		RejectReason:   record.RejectReason,
		RejectedAt:     record.RejectedAt,
		WechatRefundID: record.WechatRefundID,
		FailReason:     record.FailReason,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
}

func toRefundBiz(m *model.RefundRecord) *biz.RefundRecord {
	return &biz.RefundRecord{
		ID:             m.ID,
		RefundNo:       m.RefundNo,
		OrderID:        m.OrderID,
		Amount:         m.Amount,
		Status:         biz.RefundStatus(m.Status),
		Reason:         m.Reason,
		ApprovedBy:     m.ApprovedBy,
		ApproveNote:    m.ApproveNote,
		ApprovedAt:     m.ApprovedAt,
		RejectedBy:     m.RejectedBy,
		RejectReason:   m.RejectReason,
		RejectedAt:     m.RejectedAt,
		WechatRefundID: m.WechatRefundID,
		FailReason:     m.FailReason,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// CreateRefund 创建退款单
func (r *refundRepo) CreateRefund(ctx context.Context, record *biz.RefundRecord) error {
	m := toRefundModel(record)
	if err := r.data.DB(ctx).Create(m).Error; err != nil {
		r.log.Errorf("Failed to create refund %s: %v", record.RefundNo, err)
		return err
	}
	record.ID = m.ID
	return nil
}

func (r *refundRepo) getRefundByNo(ctx context.Context, refundNo string, locking bool) (*biz.RefundRecord, error) {
	db := r.data.DB(ctx)
	if locking {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var m model.RefundRecord
	if err := db.Where("refund_no = ?", refundNo).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toRefundBiz(&m), nil
}

// GetRefundByNo 按退款单号获取退款单
func (r *refundRepo) GetRefundByNo(ctx context.Context, refundNo string) (*biz.RefundRecord, error) {
	return r.getRefundByNo(ctx, refundNo, false)
}

// GetRefundByNoForUpdate 按退款单号行锁读取
func (r *refundRepo) GetRefundByNoForUpdate(ctx context.Context, refundNo string) (*biz.RefundRecord, error) {
	return r.getRefundByNo(ctx, refundNo, true)
}

// UpdateRefund 更新退款单
func (r *refundRepo) UpdateRefund(ctx context.Context, record *biz.RefundRecord) error {
	if err := r.data.DB(ctx).Save(toRefundModel(record)).Error; err != nil {
		r.log.Errorf("Failed to update refund %s: %v", record.RefundNo, err)
		return err
	}
	return nil
}

// GetActiveRefund 查询订单在途退款单 (未被驳回且未失败终结)
func (r *refundRepo) GetActiveRefund(ctx context.Context, orderID uint64) (*biz.RefundRecord, error) {
	var m model.RefundRecord
	err := r.data.DB(ctx).
		Where("order_id = ? AND status NOT IN ?", orderID,
			[]string{string(biz.RefundStatusRejected), string(biz.RefundStatusFailed)}).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toRefundBiz(&m), nil
}

// ListRefundsByStatus 按状态批量查询
func (r *refundRepo) ListRefundsByStatus(ctx context.Context, status biz.RefundStatus, limit int) ([]*biz.RefundRecord, error) {
	var ms []*model.RefundRecord
	if err := r.data.DB(ctx).
		Where("status = ?", string(status)).
		Order("created_at ASC").
		Limit(limit).
		Find(&ms).Error; err != nil {
		return nil, err
	}

	records := make([]*biz.RefundRecord, 0, len(ms))
	for _, m := range ms {
		records = append(records, toRefundBiz(m))
	}
	return records, nil
}
