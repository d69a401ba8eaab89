package meli

import "encoding/json"

// ==========================================
// DTO: 用于接收 Meli API 返回的原始 JSON 数据
// ==========================================

// PagingDTO 分页信息
type PagingDTO struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// SearchResp 卖家商品搜索响应
// GET /users/{seller_id}/items/search
// scan 模式下返回 scroll_id，普通模式只返回 paging
type SearchResp struct {
	Results  []string  `json:"results"`
	Paging   PagingDTO `json:"paging"`
	ScrollID string    `json:"scroll_id,omitempty"`
}

// ErrorResp Meli 通用错误响应
type ErrorResp struct {
	Message   string `json:"message"`
	ErrorCode string `json:"error"`
	Status    int    `json:"status"`
}

// BulkResult 批量详情接口的单条结果
// GET /items?ids=a,b,c 返回的数组元素，code 是该条目自己的 HTTP 状态码
type BulkResult struct {
	Code int             `json:"code"`
	Body json.RawMessage `json:"body"`
}

// PictureDTO 商品图片
type PictureDTO struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	SecureURL string `json:"secure_url"`
}

// ItemDetailDTO 商品详情 (BulkResult.Body 的结构)
type ItemDetailDTO struct {
	ID                string       `json:"id"`
	SiteID            string       `json:"site_id"`
	Title             string       `json:"title"`
	SellerID          int64        `json:"seller_id"`
	CategoryID        string       `json:"category_id"`
	Price             float64      `json:"price"`
	CurrencyID        string       `json:"currency_id"`
	AvailableQuantity int          `json:"available_quantity"`
	SoldQuantity      int          `json:"sold_quantity"`
	ListingTypeID     string       `json:"listing_type_id"`
	Condition         string       `json:"condition"`
	Permalink         string       `json:"permalink"`
	Thumbnail         string       `json:"thumbnail"`
	Pictures          []PictureDTO `json:"pictures"`
	Status            string       `json:"status"` // active / paused / closed
	SubStatus         []string     `json:"sub_status"`
	StartTime         string       `json:"start_time"`
	StopTime          string       `json:"stop_time"`
	EndTime           string       `json:"end_time"`
}

// ThumbnailURL 取首图的 secure_url 作为缩略图，没有图片时退回 thumbnail 字段
func (d *ItemDetailDTO) ThumbnailURL() string {
	if len(d.Pictures) > 0 && d.Pictures[0].SecureURL != "" {
		return d.Pictures[0].SecureURL
	}
	return d.Thumbnail
}

// MarketplaceItemDTO CBT 商品在单个国家站点的发布记录
// GET /items/{id}/marketplace_items
type MarketplaceItemDTO struct {
	ItemID      string `json:"item_id"`
	SiteID      string `json:"site_id"`
	DateCreated string `json:"date_created"`
}

// MarketplaceItemsResp CBT 多站点发布列表响应
type MarketplaceItemsResp struct {
	MarketplaceItems []MarketplaceItemDTO `json:"marketplace_items"`
}

// PerformanceResp 商品质量分响应
// GET /items/{id}/performance
type PerformanceResp struct {
	ItemID       string          `json:"item_id"`
	Score        float64         `json:"score"`
	Level        string          `json:"level"`
	LevelWording string          `json:"level_wording"`
	CalculatedAt string          `json:"calculated_at"`
	Raw          json.RawMessage `json:"-"`
}
