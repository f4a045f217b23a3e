package repositories

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"campus/app/models/batch"
	"campus/pkg/database"
	"campus/pkg/payment/types"
)

// BatchRepository 课程批次仓库
// 批次的创建维护属于课程子系统，这里只提供缴费核心需要的费用与汇总读取。
type BatchRepository struct {
	db *gorm.DB
}

// NewBatchRepository 创建仓库实例
func NewBatchRepository() *BatchRepository {
	return &BatchRepository{
		db: database.DB,
	}
}

// FullAmountPayable 查询批次费用，开户时固化为账户的应缴全额
func (r *BatchRepository) FullAmountPayable(ctx context.Context, batchID uint64) (decimal.Decimal, error) {
	var courseBatch batch.CourseBatch
	err := r.db.WithContext(ctx).First(&courseBatch, batchID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, types.ErrBatchNotFound
		}
		return decimal.Zero, err
	}
	return courseBatch.BatchFee, nil
}

// GetSummary 获取批次营收汇总
func (r *BatchRepository) GetSummary(ctx context.Context, batchID uint64) (*batch.FeeSummary, error) {
	var summary batch.FeeSummary
	err := r.db.WithContext(ctx).
		Where("course_batch_id = ?", batchID).
		First(&summary).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrBatchNotFound
		}
		return nil, err
	}
	return &summary, nil
}
