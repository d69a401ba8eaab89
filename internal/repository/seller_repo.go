package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"meli_sync_v1_202608/internal/model"
)

// ==================== 接口定义 ====================

// SellerRepository 卖家仓储接口
type SellerRepository interface {
	Create(ctx context.Context, seller *model.GlobalSeller) error
	GetByID(ctx context.Context, id int64) (*model.GlobalSeller, error)
	GetByMeliSellerID(ctx context.Context, meliSellerID int64) (*model.GlobalSeller, error)
	List(ctx context.Context, filter SellerFilter) ([]model.GlobalSeller, int64, error)
	ListActive(ctx context.Context, limit int) ([]model.GlobalSeller, error)
	Update(ctx context.Context, seller *model.GlobalSeller) error
	UpdateTokenStatus(ctx context.Context, id int64, status string) error
	UpdateLastSync(ctx context.Context, id int64, at time.Time, itemCount int64) error
	Delete(ctx context.Context, id int64) error
}

// SellerFilter 卖家查询过滤条件
type SellerFilter struct {
	OwnerAccountID string
	Status         int
	Page           int
	PageSize       int
}

// ==================== 仓储实现 ====================

type sellerRepo struct {
	db *gorm.DB
}

// NewSellerRepository 创建卖家仓储
func NewSellerRepository(db *gorm.DB) SellerRepository {
	return &sellerRepo{db: db}
}

func (r *sellerRepo) Create(ctx context.Context, seller *model.GlobalSeller) error {
	return r.db.WithContext(ctx).Create(seller).Error
}

func (r *sellerRepo) GetByID(ctx context.Context, id int64) (*model.GlobalSeller, error) {
	var seller model.GlobalSeller
	if err := r.db.WithContext(ctx).First(&seller, id).Error; err != nil {
		return nil, err
	}
	return &seller, nil
}

func (r *sellerRepo) GetByMeliSellerID(ctx context.Context, meliSellerID int64) (*model.GlobalSeller, error) {
	var seller model.GlobalSeller
	err := r.db.WithContext(ctx).
		Where("meli_seller_id = ?", meliSellerID).
		First(&seller).Error
	if err != nil {
		return nil, err
	}
	return &seller, nil
}

func (r *sellerRepo) List(ctx context.Context, filter SellerFilter) ([]model.GlobalSeller, int64, error) {
	var sellers []model.GlobalSeller
	var total int64

	query := r.db.WithContext(ctx).Model(&model.GlobalSeller{})
	if filter.OwnerAccountID != "" {
		query = query.Where("owner_account_id = ?", filter.OwnerAccountID)
	}
	if filter.Status > 0 {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	offset := (filter.Page - 1) * filter.PageSize
	err := query.
		Order("created_at DESC").
		Limit(filter.PageSize).
		Offset(offset).
		Find(&sellers).Error

	return sellers, total, err
}

func (r *sellerRepo) ListActive(ctx context.Context, limit int) ([]model.GlobalSeller, error) {
	var sellers []model.GlobalSeller
	query := r.db.WithContext(ctx).
		Where("status = ? AND token_status = ?", model.SellerStatusActive, model.TokenStatusValid)
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&sellers).Error
	return sellers, err
}

func (r *sellerRepo) Update(ctx context.Context, seller *model.GlobalSeller) error {
	return r.db.WithContext(ctx).Save(seller).Error
}

func (r *sellerRepo) UpdateTokenStatus(ctx context.Context, id int64, status string) error {
	return r.db.WithContext(ctx).
		Model(&model.GlobalSeller{}).
		Where("id = ?", id).
		Update("token_status", status).Error
}

func (r *sellerRepo) UpdateLastSync(ctx context.Context, id int64, at time.Time, itemCount int64) error {
	return r.db.WithContext(ctx).
		Model(&model.GlobalSeller{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_sync_at": at,
			"item_count":   itemCount,
		}).Error
}

func (r *sellerRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.GlobalSeller{}, id).Error
}
