package dto

import (
	"time"

	"meli_sync_v1_202608/internal/model"
)

// ==================== 请求 DTO ====================

// CheckExistingReq 批量存在性探测请求
type CheckExistingReq struct {
	ItemIDs []string `json:"item_ids" binding:"required,min=1,max=1000"`
}

// ==================== 响应 DTO ====================

// ItemResp 商品响应
type ItemResp struct {
	ID                int64      `json:"id"`
	SellerID          int64      `json:"seller_id"`
	MeliItemID        string     `json:"meli_item_id"`
	SiteID            string     `json:"site_id"`
	IsCBT             bool       `json:"is_cbt"`
	Title             string     `json:"title"`
	Price             float64    `json:"price"`
	CurrencyID        string     `json:"currency_id"`
	CategoryID        string     `json:"category_id"`
	AvailableQuantity int        `json:"available_quantity"`
	SoldQuantity      int        `json:"sold_quantity"`
	Status            string     `json:"status"`
	SubStatus         []string   `json:"sub_status"`
	ListingTypeID     string     `json:"listing_type_id"`
	Condition         string     `json:"condition"`
	Permalink         string     `json:"permalink"`
	ThumbnailURL      string     `json:"thumbnail_url"`
	LastSyncedAt      *time.Time `json:"last_synced_at"`
	SyncError         string     `json:"sync_error,omitempty"`
}

// ToItemResp 商品模型转响应
func ToItemResp(item *model.Item) ItemResp {
	return ItemResp{
		ID:                item.ID,
		SellerID:          item.SellerID,
		MeliItemID:        item.MeliItemID,
		SiteID:            item.SiteID,
		IsCBT:             item.IsCBT(),
		Title:             item.Title,
		Price:             item.Price,
		CurrencyID:        item.CurrencyID,
		CategoryID:        item.CategoryID,
		AvailableQuantity: item.AvailableQuantity,
		SoldQuantity:      item.SoldQuantity,
		Status:            item.Status,
		SubStatus:         []string(item.SubStatus),
		ListingTypeID:     item.ListingTypeID,
		Condition:         item.Condition,
		Permalink:         item.Permalink,
		ThumbnailURL:      item.ThumbnailURL,
		LastSyncedAt:      item.LastSyncedAt,
		SyncError:         item.SyncError,
	}
}

// ItemListResp 商品列表响应
type ItemListResp struct {
	Code     int        `json:"code"`
	Message  string     `json:"message"`
	Data     []ItemResp `json:"data"`
	Total    int64      `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

// MarketplaceItemResp 多站点发布记录响应
type MarketplaceItemResp struct {
	ID                int64      `json:"id"`
	SiteID            string     `json:"site_id"`
	MarketplaceItemID string     `json:"marketplace_item_id"`
	DateCreated       *time.Time `json:"date_created"`
	Score             float64    `json:"score"`
	Level             string     `json:"level"`
	LevelWording      string     `json:"level_wording"`
	CalculatedAt      *time.Time `json:"calculated_at"`
}

// ToMarketplaceItemResp 发布记录模型转响应
func ToMarketplaceItemResp(row *model.MarketplaceItem) MarketplaceItemResp {
	return MarketplaceItemResp{
		ID:                row.ID,
		SiteID:            row.SiteID,
		MarketplaceItemID: row.MarketplaceItemID,
		DateCreated:       row.DateCreated,
		Score:             row.Score,
		Level:             row.Level,
		LevelWording:      row.LevelWording,
		CalculatedAt:      row.CalculatedAt,
	}
}
