package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"meli_sync_v1_202608/internal/model"
	"meli_sync_v1_202608/internal/repository"
)

// ==================== SellerService 卖家管理 ====================

// SellerService 全球卖家的接入与管理
type SellerService struct {
	sellerRepo repository.SellerRepository
	itemRepo   repository.ItemRepository
	logger     *zap.Logger
}

// NewSellerService 创建卖家服务
func NewSellerService(
	sellerRepo repository.SellerRepository,
	itemRepo repository.ItemRepository,
	logger *zap.Logger,
) *SellerService {
	return &SellerService{
		sellerRepo: sellerRepo,
		itemRepo:   itemRepo,
		logger:     logger,
	}
}

// CreateSeller 接入新卖家
func (s *SellerService) CreateSeller(ctx context.Context, seller *model.GlobalSeller) error {
	if seller.MeliSellerID <= 0 {
		return errors.New("无效的上游卖家 ID")
	}
	if seller.AccessToken == "" {
		return errors.New("缺少访问凭证")
	}

	if existing, err := s.sellerRepo.GetByMeliSellerID(ctx, seller.MeliSellerID); err == nil && existing != nil {
		return fmt.Errorf("卖家 %d 已接入", seller.MeliSellerID)
	}

	if seller.SiteID == "" {
		seller.SiteID = "CBT"
	}
	seller.Status = model.SellerStatusActive
	seller.TokenStatus = model.TokenStatusValid
	return s.sellerRepo.Create(ctx, seller)
}

// GetSeller 查询卖家
func (s *SellerService) GetSeller(ctx context.Context, id int64) (*model.GlobalSeller, error) {
	seller, err := s.sellerRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("卖家不存在")
		}
		return nil, err
	}
	return seller, nil
}

// ListSellers 分页查询卖家
func (s *SellerService) ListSellers(ctx context.Context, ownerAccountID string, status, page, pageSize int) ([]model.GlobalSeller, int64, error) {
	return s.sellerRepo.List(ctx, repository.SellerFilter{
		OwnerAccountID: ownerAccountID,
		Status:         status,
		Page:           page,
		PageSize:       pageSize,
	})
}

// UpdateSeller 更新卖家信息
func (s *SellerService) UpdateSeller(ctx context.Context, seller *model.GlobalSeller) error {
	return s.sellerRepo.Update(ctx, seller)
}

// UpdateToken 换新访问凭证并恢复凭证状态
func (s *SellerService) UpdateToken(ctx context.Context, id int64, accessToken string) error {
	if accessToken == "" {
		return errors.New("缺少访问凭证")
	}
	seller, err := s.sellerRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("卖家不存在: %w", err)
	}
	seller.AccessToken = accessToken
	seller.TokenStatus = model.TokenStatusValid
	if err := s.sellerRepo.Update(ctx, seller); err != nil {
		return err
	}
	s.logger.Info("卖家凭证已更新", zap.Int64("seller_id", id))
	return nil
}

// DeleteSeller 下线卖家并清空其本地商品镜像
func (s *SellerService) DeleteSeller(ctx context.Context, id int64) error {
	seller, err := s.sellerRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("卖家不存在: %w", err)
	}

	if err := s.itemRepo.DeleteBySeller(ctx, seller.MeliSellerID); err != nil {
		return fmt.Errorf("清空卖家商品失败: %w", err)
	}
	if err := s.sellerRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("卖家已下线", zap.Int64("seller_id", id), zap.String("nickname", seller.Nickname))
	return nil
}
