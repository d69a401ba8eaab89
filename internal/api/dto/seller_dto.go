package dto

import (
	"time"

	"meli_sync_v1_202608/internal/model"
)

// ==================== 请求 DTO ====================

// CreateSellerReq 接入卖家请求
type CreateSellerReq struct {
	MeliSellerID   int64  `json:"meli_seller_id" binding:"required,gt=0"`
	Nickname       string `json:"nickname" binding:"max=100"`
	SiteID         string `json:"site_id"`
	OwnerAccountID string `json:"owner_account_id"`
	AccessToken    string `json:"access_token" binding:"required"`
}

// UpdateTokenReq 换新凭证请求
type UpdateTokenReq struct {
	AccessToken string `json:"access_token" binding:"required"`
}

// ==================== 响应 DTO ====================

// SellerResp 卖家响应
// 不回传 AccessToken
type SellerResp struct {
	ID           int64      `json:"id"`
	MeliSellerID int64      `json:"meli_seller_id"`
	Nickname     string     `json:"nickname"`
	SiteID       string     `json:"site_id"`
	Status       int        `json:"status"`
	TokenStatus  string     `json:"token_status"`
	ItemCount    int64      `json:"item_count"`
	LastSyncAt   *time.Time `json:"last_sync_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ToSellerResp 卖家模型转响应
func ToSellerResp(seller *model.GlobalSeller) SellerResp {
	return SellerResp{
		ID:           seller.ID,
		MeliSellerID: seller.MeliSellerID,
		Nickname:     seller.Nickname,
		SiteID:       seller.SiteID,
		Status:       seller.Status,
		TokenStatus:  seller.TokenStatus,
		ItemCount:    seller.ItemCount,
		LastSyncAt:   seller.LastSyncAt,
		CreatedAt:    seller.CreatedAt,
	}
}

// SellerListResp 卖家列表响应
type SellerListResp struct {
	Code     int          `json:"code"`
	Message  string       `json:"message"`
	Data     []SellerResp `json:"data"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}
