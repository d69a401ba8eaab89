package dto

// ==================== 请求 DTO ====================

// StartSyncReq 触发同步请求
type StartSyncReq struct {
	CBTOnly  bool `json:"cbt_only"`  // 只同步 CBT 跨境商品
	Full     bool `json:"full"`      // 全量模式：详情全部重拉，禁用早停
	MaxItems int  `json:"max_items"` // 本次运行扫描商品数上限，0 不限
	MaxPages int  `json:"max_pages"` // 本次运行页数上限，0 不限
}

// ==================== 响应 DTO ====================

// StartSyncResp 触发同步响应
type StartSyncResp struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}
