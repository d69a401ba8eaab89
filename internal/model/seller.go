package model

import (
	"time"
)

// GlobalSeller 状态常量
const (
	SellerStatusPending  = 0 // 待授权
	SellerStatusActive   = 1 // 正常
	SellerStatusInactive = 2 // 已停用
)

// Token 状态常量
const (
	TokenStatusValid   = "valid"        // 有效
	TokenStatusExpired = "expired"      // 已过期
	TokenStatusInvalid = "auth_invalid" // 需重新授权
)

// GlobalSeller 跨境卖家（租户）
// 本地镜像按卖家隔离，所有商品写入都挂在 SellerID 下
type GlobalSeller struct {
	BaseModel
	// 1. 核心身份
	// MeliSellerID 对应上游平台的 user_id，与 Item 表外键保持一致
	MeliSellerID int64  `gorm:"uniqueIndex;not null"`
	Nickname     string `gorm:"size:100"`
	SiteID       string `gorm:"size:8;default:'CBT'"` // 主站点，跨境卖家默认 CBT

	// 2. 归属
	// 控制接口要求调用方持有该卖家记录，用 OwnerAccountID 做归属校验
	OwnerAccountID string `gorm:"size:64;index;not null"`

	// 3. 同步状态
	Status     int        `gorm:"default:1;comment:状态 0-待授权 1-正常 2-已停用"`
	LastSyncAt *time.Time `gorm:"comment:最后同步完成时间"`
	ItemCount  int64      `gorm:"default:0;comment:镜像商品数"`

	// 4. API Token
	// 401 时置为 expired，等待运营重新授权，绝不自动重试
	TokenStatus string `gorm:"index;size:20;default:'valid'"`
	AccessToken string `gorm:"size:255"`

	// 5. 关联关系
	// Item 表存的是 MeliSellerID，references 指向本表的 MeliSellerID 而非主键
	Items []Item `gorm:"foreignKey:SellerID;references:MeliSellerID"`
}

func (GlobalSeller) TableName() string {
	return "global_sellers"
}

// CredentialValid 是否具备可用凭证
func (s *GlobalSeller) CredentialValid() bool {
	return s.AccessToken != "" && s.TokenStatus == TokenStatusValid
}
