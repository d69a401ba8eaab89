package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"meli_sync_v1_202608/internal/api/dto"
	"meli_sync_v1_202608/internal/service"
)

type ItemController struct {
	itemService *service.ItemService
}

func NewItemController(itemService *service.ItemService) *ItemController {
	return &ItemController{itemService: itemService}
}

// ==================== 查询接口 ====================

// GetItems 获取卖家商品列表
// @Summary 获取卖家本地商品镜像列表
// @Tags Item
// @Param id path int true "卖家ID"
// @Param status query string false "状态筛选 active/paused/closed"
// @Param cbt_only query bool false "只看 CBT 跨境商品"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} dto.ItemListResp
// @Router /api/sellers/{id}/items [get]
func (ctrl *ItemController) GetItems(c *gin.Context) {
	sellerID, ok := sellerIDParam(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	status := c.Query("status")
	cbtOnly := c.Query("cbt_only") == "true"

	items, total, err := ctrl.itemService.ListItems(c.Request.Context(), sellerID, status, cbtOnly, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "查询失败: " + err.Error()})
		return
	}

	respList := make([]dto.ItemResp, 0, len(items))
	for i := range items {
		respList = append(respList, dto.ToItemResp(&items[i]))
	}

	c.JSON(http.StatusOK, dto.ItemListResp{
		Code:     0,
		Message:  "success",
		Data:     respList,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// GetItem 获取商品详情及多站点发布记录
// @Summary 获取单个商品详情
// @Tags Item
// @Param id path int true "卖家ID"
// @Param item_id path string true "上游商品ID"
// @Router /api/sellers/{id}/items/{item_id} [get]
func (ctrl *ItemController) GetItem(c *gin.Context) {
	sellerID, ok := sellerIDParam(c)
	if !ok {
		return
	}
	itemID := c.Param("item_id")

	item, marketplaces, err := ctrl.itemService.GetItemWithMarketplaces(c.Request.Context(), sellerID, itemID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": 404, "message": err.Error()})
		return
	}

	mkResp := make([]dto.MarketplaceItemResp, 0, len(marketplaces))
	for i := range marketplaces {
		mkResp = append(mkResp, dto.ToMarketplaceItemResp(&marketplaces[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": gin.H{
			"item":              dto.ToItemResp(item),
			"marketplace_items": mkResp,
		},
	})
}

// CheckExisting 批量存在性探测
// @Summary 探测一组上游商品 ID 中哪些已在本地存在
// @Tags Item
// @Param id path int true "卖家ID"
// @Param body body dto.CheckExistingReq true "商品ID列表"
// @Router /api/sellers/{id}/items/check-existing [post]
func (ctrl *ItemController) CheckExisting(c *gin.Context) {
	sellerID, ok := sellerIDParam(c)
	if !ok {
		return
	}

	var req dto.CheckExistingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "参数错误: " + err.Error()})
		return
	}

	existing, err := ctrl.itemService.CheckExisting(c.Request.Context(), sellerID, req.ItemIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "探测失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": gin.H{
			"existing": existing,
			"checked":  len(req.ItemIDs),
		},
	})
}

// ==================== 单品刷新 ====================

// Resync 单品重同步
// @Summary 重拉单个商品详情并刷新本地镜像
// @Tags Item
// @Param id path int true "卖家ID"
// @Param item_id path string true "上游商品ID"
// @Router /api/sellers/{id}/items/{item_id}/resync [post]
func (ctrl *ItemController) Resync(c *gin.Context) {
	sellerID, ok := sellerIDParam(c)
	if !ok {
		return
	}
	itemID := c.Param("item_id")

	item, err := ctrl.itemService.ResyncItem(c.Request.Context(), sellerID, itemID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "重同步失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": dto.ToItemResp(item)})
}

// RefreshMarketplaces 刷新 CBT 商品的多站点发布记录
// @Summary 重拉 CBT 商品的各国家站点发布记录与质量分
// @Tags Item
// @Param id path int true "卖家ID"
// @Param item_id path string true "上游商品ID"
// @Router /api/sellers/{id}/items/{item_id}/marketplace-items/refresh [post]
func (ctrl *ItemController) RefreshMarketplaces(c *gin.Context) {
	sellerID, ok := sellerIDParam(c)
	if !ok {
		return
	}
	itemID := c.Param("item_id")

	rows, err := ctrl.itemService.RefreshMarketplaceItems(c.Request.Context(), sellerID, itemID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "刷新失败: " + err.Error()})
		return
	}

	respList := make([]dto.MarketplaceItemResp, 0, len(rows))
	for i := range rows {
		respList = append(respList, dto.ToMarketplaceItemResp(&rows[i]))
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": respList})
}
