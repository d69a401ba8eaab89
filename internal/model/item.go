package model

import (
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// CBTPrefix 跨境商品 (CBT) 的 ID 前缀
// CBT 不单独建表，就是带此前缀的 Item 的过滤视图
const CBTPrefix = "CBT"

// Item 生命周期状态（跟随上游取值）
const (
	ItemStatusActive = "active"
	ItemStatusPaused = "paused"
	ItemStatusClosed = "closed"
)

// Item 上游商品在本地的镜像
// 唯一键 (seller_id, meli_item_id)，所有写入都是该键上的 upsert，
// 重复投递同一条记录除刷新 last_synced_at 外是空操作
type Item struct {
	BaseModel
	// --- 身份字段（冲突时不更新） ---
	SellerID   int64  `gorm:"uniqueIndex:idx_seller_item;index;not null"` // 上游卖家 ID
	MeliItemID string `gorm:"size:40;uniqueIndex:idx_seller_item;not null"`
	SiteID     string `gorm:"size:8;index"`

	// --- 商品基本信息 ---
	Title      string  `gorm:"size:255"`
	Price      float64 `gorm:"default:0"`
	CurrencyID string  `gorm:"size:8"`
	CategoryID string  `gorm:"size:30;index"`

	// --- 数量 ---
	AvailableQuantity int `gorm:"default:0"`
	SoldQuantity      int `gorm:"default:0"`

	// --- 状态 ---
	Status    string         `gorm:"size:20;index"` // active, paused, closed
	SubStatus pq.StringArray `gorm:"type:text[]"`

	// --- 发布属性 ---
	ListingTypeID string `gorm:"size:30"`
	Condition     string `gorm:"size:20"`
	Permalink     string `gorm:"size:512"`
	ThumbnailURL  string `gorm:"size:512"`

	// --- 上游时间线 ---
	StartTime *time.Time
	StopTime  *time.Time
	EndTime   *time.Time

	// --- 同步诊断 ---
	LastSyncedAt *time.Time
	SyncError    string `gorm:"size:255;comment:最近一次同步失败原因，成功时清空"`

	// --- 原始报文 ---
	// 整包保留上游详情，诊断字段可以从这里找回
	RawPayload datatypes.JSON `gorm:"type:jsonb"`

	// --- 关联关系 ---
	MarketplaceItems []MarketplaceItem `gorm:"foreignKey:ItemID"`
}

func (Item) TableName() string {
	return "gs_items"
}

// IsCBT 是否跨境商品
func (i *Item) IsCBT() bool {
	return IsCBTItemID(i.MeliItemID)
}

// IsCBTItemID 判断上游商品 ID 是否带 CBT 前缀
func IsCBTItemID(meliItemID string) bool {
	return strings.HasPrefix(meliItemID, CBTPrefix)
}

// MarketplaceItem CBT 商品在单个国家站点的发布记录
// 唯一键 (item_id, site_id)；刷新时整组 delete-then-insert，不做字段级合并
type MarketplaceItem struct {
	BaseModel
	// --- 关联 ---
	ItemID int64 `gorm:"uniqueIndex:idx_item_site;index;not null"`
	Item   *Item `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	// --- 站点发布信息 ---
	MarketplaceItemID string `gorm:"size:40;index"` // 该站点上的商品 ID
	SiteID            string `gorm:"size:8;uniqueIndex:idx_item_site;not null"`
	DateCreated       *time.Time

	// --- 质量分（可选） ---
	Score        float64 `gorm:"default:0"`
	Level        string  `gorm:"size:30"`
	LevelWording string  `gorm:"size:100"`
	CalculatedAt *time.Time
	RawScore     datatypes.JSON `gorm:"type:jsonb"`
}

func (MarketplaceItem) TableName() string {
	return "marketplace_items"
}
