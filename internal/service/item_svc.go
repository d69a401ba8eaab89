package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"meli_sync_v1_202608/internal/model"
	"meli_sync_v1_202608/internal/repository"
	"meli_sync_v1_202608/pkg/meli"
)

// ==================== ItemService 商品查询与单品刷新 ====================

// ItemService 本地商品镜像的查询与单品级刷新
type ItemService struct {
	sellerRepo repository.SellerRepository
	itemRepo   repository.ItemRepository
	client     *meli.Client
	logger     *zap.Logger
}

// NewItemService 创建商品服务
func NewItemService(
	sellerRepo repository.SellerRepository,
	itemRepo repository.ItemRepository,
	client *meli.Client,
	logger *zap.Logger,
) *ItemService {
	return &ItemService{
		sellerRepo: sellerRepo,
		itemRepo:   itemRepo,
		client:     client,
		logger:     logger,
	}
}

// ListItems 分页查询卖家本地商品
func (s *ItemService) ListItems(ctx context.Context, sellerID int64, status string, cbtOnly bool, page, pageSize int) ([]model.Item, int64, error) {
	seller, err := s.sellerRepo.GetByID(ctx, sellerID)
	if err != nil {
		return nil, 0, fmt.Errorf("卖家不存在: %w", err)
	}
	return s.itemRepo.List(ctx, repository.ItemFilter{
		SellerID: seller.MeliSellerID,
		Status:   status,
		CBTOnly:  cbtOnly,
		Page:     page,
		PageSize: pageSize,
	})
}

// CheckExisting 批量存在性探测
// 入参是一组上游商品 ID，返回其中本地已存在的子集（保持入参顺序）
func (s *ItemService) CheckExisting(ctx context.Context, sellerID int64, meliItemIDs []string) ([]string, error) {
	seller, err := s.sellerRepo.GetByID(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("卖家不存在: %w", err)
	}
	return s.itemRepo.ExistingIDs(ctx, seller.MeliSellerID, meliItemIDs)
}

// ResyncItem 单品重同步：重拉详情并 upsert 本地镜像
// 上游已不存在或拉取失败时写入商品诊断字段
func (s *ItemService) ResyncItem(ctx context.Context, sellerID int64, meliItemID string) (*model.Item, error) {
	seller, err := s.sellerRepo.GetByID(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("卖家不存在: %w", err)
	}
	if !seller.CredentialValid() {
		return nil, fmt.Errorf("卖家 %s 授权已失效，请重新授权", seller.Nickname)
	}
	auth := meli.Auth{SellerID: seller.MeliSellerID, AccessToken: seller.AccessToken}

	results, err := s.client.FetchDetails(ctx, auth, []string{meliItemID})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 || results[0].Code != 200 {
		code := 0
		if len(results) > 0 {
			code = results[0].Code
		}
		msg := fmt.Sprintf("详情拉取失败 [%d]", code)
		if uerr := s.itemRepo.UpdateSyncError(ctx, seller.MeliSellerID, []string{meliItemID}, msg); uerr != nil {
			s.logger.Warn("写入商品诊断字段失败", zap.Error(uerr))
		}
		return nil, fmt.Errorf("商品 %s %s", meliItemID, msg)
	}

	var dto meli.ItemDetailDTO
	if err := json.Unmarshal(results[0].Body, &dto); err != nil {
		return nil, fmt.Errorf("解析商品详情失败: %w", err)
	}

	now := time.Now()
	row := model.Item{
		SellerID:          seller.MeliSellerID,
		MeliItemID:        dto.ID,
		SiteID:            dto.SiteID,
		Title:             dto.Title,
		Price:             dto.Price,
		CurrencyID:        dto.CurrencyID,
		CategoryID:        dto.CategoryID,
		AvailableQuantity: dto.AvailableQuantity,
		SoldQuantity:      dto.SoldQuantity,
		Status:            dto.Status,
		SubStatus:         pq.StringArray(dto.SubStatus),
		ListingTypeID:     dto.ListingTypeID,
		Condition:         dto.Condition,
		Permalink:         dto.Permalink,
		ThumbnailURL:      dto.ThumbnailURL(),
		StartTime:         parseMeliTime(dto.StartTime),
		StopTime:          parseMeliTime(dto.StopTime),
		EndTime:           parseMeliTime(dto.EndTime),
		LastSyncedAt:      &now,
		RawPayload:        datatypes.JSON(results[0].Body),
	}
	if _, err := s.itemRepo.BatchUpsert(ctx, []model.Item{row}); err != nil {
		return nil, fmt.Errorf("商品入库失败: %w", err)
	}

	return s.itemRepo.GetByMeliID(ctx, seller.MeliSellerID, meliItemID)
}

// RefreshMarketplaceItems 刷新 CBT 商品的多站点发布记录
// 整组替换：先拉发布列表，逐站点补质量分（质量分拉不到不阻塞刷新）
func (s *ItemService) RefreshMarketplaceItems(ctx context.Context, sellerID int64, meliItemID string) ([]model.MarketplaceItem, error) {
	seller, err := s.sellerRepo.GetByID(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("卖家不存在: %w", err)
	}
	if !seller.CredentialValid() {
		return nil, fmt.Errorf("卖家 %s 授权已失效，请重新授权", seller.Nickname)
	}

	item, err := s.itemRepo.GetByMeliID(ctx, seller.MeliSellerID, meliItemID)
	if err != nil {
		return nil, fmt.Errorf("商品不存在: %w", err)
	}
	if !item.IsCBT() {
		return nil, fmt.Errorf("商品 %s 不是跨境商品，没有多站点发布记录", meliItemID)
	}

	auth := meli.Auth{SellerID: seller.MeliSellerID, AccessToken: seller.AccessToken}
	resp, err := s.client.MarketplaceItems(ctx, auth, meliItemID)
	if err != nil {
		return nil, err
	}

	rows := make([]model.MarketplaceItem, 0, len(resp.MarketplaceItems))
	for _, dto := range resp.MarketplaceItems {
		row := model.MarketplaceItem{
			ItemID:            item.ID,
			MarketplaceItemID: dto.ItemID,
			SiteID:            dto.SiteID,
			DateCreated:       parseMeliTime(dto.DateCreated),
		}

		// 质量分按站点商品 ID 单独拉，失败只记日志
		if perf, perr := s.client.Performance(ctx, auth, dto.ItemID); perr == nil {
			row.Score = perf.Score
			row.Level = perf.Level
			row.LevelWording = perf.LevelWording
			row.CalculatedAt = parseMeliTime(perf.CalculatedAt)
			row.RawScore = datatypes.JSON(perf.Raw)
		} else {
			s.logger.Warn("拉取商品质量分失败",
				zap.String("item_id", dto.ItemID),
				zap.Error(perr))
		}

		rows = append(rows, row)
	}

	if err := s.itemRepo.ReplaceMarketplaceItems(ctx, item.ID, rows); err != nil {
		return nil, fmt.Errorf("多站点发布记录入库失败: %w", err)
	}
	return s.itemRepo.GetMarketplaceItems(ctx, item.ID)
}

// GetItemWithMarketplaces 查询单个商品及其多站点发布记录
func (s *ItemService) GetItemWithMarketplaces(ctx context.Context, sellerID int64, meliItemID string) (*model.Item, []model.MarketplaceItem, error) {
	seller, err := s.sellerRepo.GetByID(ctx, sellerID)
	if err != nil {
		return nil, nil, fmt.Errorf("卖家不存在: %w", err)
	}
	item, err := s.itemRepo.GetByMeliID(ctx, seller.MeliSellerID, meliItemID)
	if err != nil {
		return nil, nil, fmt.Errorf("商品不存在: %w", err)
	}
	rows, err := s.itemRepo.GetMarketplaceItems(ctx, item.ID)
	if err != nil {
		return nil, nil, err
	}
	return item, rows, nil
}
