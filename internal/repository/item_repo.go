package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"meli_sync_v1_202608/internal/model"
)

// probeChunkSize 存在性探测的单次 IN 条件上限
// 控制单条 SQL 的参数个数，批次切分不影响结果正确性
const probeChunkSize = 500

// ==================== 接口定义 ====================

// ItemRepository 商品镜像仓储接口
type ItemRepository interface {
	// 基础 CRUD
	GetByID(ctx context.Context, id int64) (*model.Item, error)
	GetByMeliID(ctx context.Context, sellerID int64, meliItemID string) (*model.Item, error)
	List(ctx context.Context, filter ItemFilter) ([]model.Item, int64, error)
	CountBySeller(ctx context.Context, sellerID int64) (int64, error)
	DeleteBySeller(ctx context.Context, sellerID int64) error

	// 去重与批量写入
	FilterUnknown(ctx context.Context, sellerID int64, ids []string) ([]string, error)
	ExistingIDs(ctx context.Context, sellerID int64, ids []string) ([]string, error)
	BatchUpsert(ctx context.Context, items []model.Item) (int64, error)

	// 同步诊断
	UpdateSyncError(ctx context.Context, sellerID int64, ids []string, msg string) error

	// 多站点发布记录
	ReplaceMarketplaceItems(ctx context.Context, itemID int64, rows []model.MarketplaceItem) error
	GetMarketplaceItems(ctx context.Context, itemID int64) ([]model.MarketplaceItem, error)

	// 事务
	WithTx(tx *gorm.DB) ItemRepository
	Transaction(ctx context.Context, fn func(txRepo ItemRepository) error) error
}

// ==================== 过滤条件 ====================

// ItemFilter 商品查询过滤条件
type ItemFilter struct {
	SellerID int64
	Status   string
	CBTOnly  bool
	Page     int
	PageSize int
}

// ==================== 仓储实现 ====================

type itemRepo struct {
	db *gorm.DB
}

// NewItemRepository 创建商品仓储
func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepo{db: db}
}

func (r *itemRepo) GetByID(ctx context.Context, id int64) (*model.Item, error) {
	var item model.Item
	err := r.db.WithContext(ctx).First(&item, id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepo) GetByMeliID(ctx context.Context, sellerID int64, meliItemID string) (*model.Item, error) {
	var item model.Item
	err := r.db.WithContext(ctx).
		Where("seller_id = ? AND meli_item_id = ?", sellerID, meliItemID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepo) List(ctx context.Context, filter ItemFilter) ([]model.Item, int64, error) {
	var items []model.Item
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Item{})

	if filter.SellerID > 0 {
		query = query.Where("seller_id = ?", filter.SellerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CBTOnly {
		query = query.Where("meli_item_id LIKE ?", model.CBTPrefix+"%")
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
		Order("updated_at DESC").
		Limit(filter.PageSize).
		Offset(offset).
		Find(&items).Error

	return items, total, err
}

func (r *itemRepo) CountBySeller(ctx context.Context, sellerID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Item{}).
		Where("seller_id = ?", sellerID).
		Count(&count).Error
	return count, err
}

func (r *itemRepo) DeleteBySeller(ctx context.Context, sellerID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先清多站点发布记录，再清商品
		err := tx.Unscoped().Where("item_id IN (?)",
			tx.Model(&model.Item{}).Select("id").Where("seller_id = ?", sellerID),
		).Delete(&model.MarketplaceItem{}).Error
		if err != nil {
			return err
		}
		return tx.Unscoped().Where("seller_id = ?", sellerID).Delete(&model.Item{}).Error
	})
}

// FilterUnknown 返回本地尚不存在的 ID（保持入参顺序）
// 探测按 probeChunkSize 切块，避免超出存储层的参数上限
func (r *itemRepo) FilterUnknown(ctx context.Context, sellerID int64, ids []string) ([]string, error) {
	known, err := r.existingSet(ctx, sellerID, ids)
	if err != nil {
		return nil, err
	}

	unknown := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	return unknown, nil
}

// ExistingIDs 返回本地已存在的 ID（批量存在性探测接口使用）
func (r *itemRepo) ExistingIDs(ctx context.Context, sellerID int64, ids []string) ([]string, error) {
	known, err := r.existingSet(ctx, sellerID, ids)
	if err != nil {
		return nil, err
	}

	existing := make([]string, 0, len(known))
	for _, id := range ids {
		if _, ok := known[id]; ok {
			existing = append(existing, id)
		}
	}
	return existing, nil
}

func (r *itemRepo) existingSet(ctx context.Context, sellerID int64, ids []string) (map[string]struct{}, error) {
	known := make(map[string]struct{}, len(ids))

	for start := 0; start < len(ids); start += probeChunkSize {
		end := start + probeChunkSize
		if end > len(ids) {
			end = len(ids)
		}

		var found []string
		err := r.db.WithContext(ctx).
			Model(&model.Item{}).
			Where("seller_id = ? AND meli_item_id IN ?", sellerID, ids[start:end]).
			Pluck("meli_item_id", &found).Error
		if err != nil {
			return nil, err
		}
		for _, id := range found {
			known[id] = struct{}{}
		}
	}
	return known, nil
}

// BatchUpsert 单事务批量 upsert，冲突键 (seller_id, meli_item_id)
// 返回本次实际新增的行数（事务内前后计数之差），
// 该差值是重复批次判定（duplicate streak）的依据
func (r *itemRepo) BatchUpsert(ctx context.Context, items []model.Item) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}

	sellerID := items[0].SellerID
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].MeliItemID
	}

	var inserted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var before, after int64

		countQuery := func(out *int64) error {
			return tx.Model(&model.Item{}).
				Where("seller_id = ? AND meli_item_id IN ?", sellerID, ids).
				Count(out).Error
		}

		if err := countQuery(&before); err != nil {
			return err
		}

		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "seller_id"}, {Name: "meli_item_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"site_id", "title", "price", "currency_id", "category_id",
				"available_quantity", "sold_quantity",
				"status", "sub_status",
				"listing_type_id", "condition", "permalink", "thumbnail_url",
				"start_time", "stop_time", "end_time",
				"last_synced_at", "sync_error", "raw_payload",
				"updated_at",
			}),
		}).Create(&items).Error
		if err != nil {
			return err
		}

		if err := countQuery(&after); err != nil {
			return err
		}

		inserted = after - before
		return nil
	})

	return inserted, err
}

// UpdateSyncError 批量写入商品诊断字段
// 只影响已存在的行：详情拉取失败的新商品本地还没有记录，属于预期
func (r *itemRepo) UpdateSyncError(ctx context.Context, sellerID int64, ids []string, msg string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.Item{}).
		Where("seller_id = ? AND meli_item_id IN ?", sellerID, ids).
		Update("sync_error", msg).Error
}

// ReplaceMarketplaceItems 整组替换某商品的多站点发布记录
// 刷新语义是 delete-then-insert，不做字段级合并
func (r *itemRepo) ReplaceMarketplaceItems(ctx context.Context, itemID int64, rows []model.MarketplaceItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("item_id = ?", itemID).Unscoped().Delete(&model.MarketplaceItem{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for i := range rows {
			rows[i].ItemID = itemID
		}
		return tx.Create(&rows).Error
	})
}

func (r *itemRepo) GetMarketplaceItems(ctx context.Context, itemID int64) ([]model.MarketplaceItem, error) {
	var rows []model.MarketplaceItem
	err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("site_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *itemRepo) WithTx(tx *gorm.DB) ItemRepository {
	return &itemRepo{db: tx}
}

func (r *itemRepo) Transaction(ctx context.Context, fn func(txRepo ItemRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
