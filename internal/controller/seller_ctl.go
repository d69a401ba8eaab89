package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"meli_sync_v1_202608/internal/api/dto"
	"meli_sync_v1_202608/internal/model"
	"meli_sync_v1_202608/internal/service"
)

type SellerController struct {
	sellerService *service.SellerService
}

func NewSellerController(sellerService *service.SellerService) *SellerController {
	return &SellerController{sellerService: sellerService}
}

// ==================== 卖家管理 ====================

// Create 接入卖家
// @Summary 接入新的全球卖家
// @Tags Seller
// @Param body body dto.CreateSellerReq true "卖家信息"
// @Router /api/sellers [post]
func (ctrl *SellerController) Create(c *gin.Context) {
	var req dto.CreateSellerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "参数错误: " + err.Error()})
		return
	}

	seller := &model.GlobalSeller{
		MeliSellerID:   req.MeliSellerID,
		Nickname:       req.Nickname,
		SiteID:         req.SiteID,
		OwnerAccountID: req.OwnerAccountID,
		AccessToken:    req.AccessToken,
	}
	if err := ctrl.sellerService.CreateSeller(c.Request.Context(), seller); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "接入失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": dto.ToSellerResp(seller)})
}

// GetList 获取卖家列表
// @Summary 获取卖家列表
// @Tags Seller
// @Param owner_account_id query string false "归属账号筛选"
// @Param status query int false "状态筛选"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} dto.SellerListResp
// @Router /api/sellers [get]
func (ctrl *SellerController) GetList(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	status, _ := strconv.Atoi(c.DefaultQuery("status", "0"))
	ownerAccountID := c.Query("owner_account_id")

	sellers, total, err := ctrl.sellerService.ListSellers(c.Request.Context(), ownerAccountID, status, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "查询失败: " + err.Error()})
		return
	}

	respList := make([]dto.SellerResp, 0, len(sellers))
	for i := range sellers {
		respList = append(respList, dto.ToSellerResp(&sellers[i]))
	}

	c.JSON(http.StatusOK, dto.SellerListResp{
		Code:     0,
		Message:  "success",
		Data:     respList,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// GetDetail 获取卖家详情
// @Summary 获取单个卖家详情
// @Tags Seller
// @Param id path int true "卖家ID"
// @Router /api/sellers/{id} [get]
func (ctrl *SellerController) GetDetail(c *gin.Context) {
	sellerID, ok := sellerIDParam(c)
	if !ok {
		return
	}

	seller, err := ctrl.sellerService.GetSeller(c.Request.Context(), sellerID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": 404, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success", "data": dto.ToSellerResp(seller)})
}

// UpdateToken 换新访问凭证
// @Summary 换新卖家访问凭证并恢复凭证状态
// @Tags Seller
// @Param id path int true "卖家ID"
// @Param body body dto.UpdateTokenReq true "新凭证"
// @Router /api/sellers/{id}/token [put]
func (ctrl *SellerController) UpdateToken(c *gin.Context) {
	sellerID, ok := sellerIDParam(c)
	if !ok {
		return
	}

	var req dto.UpdateTokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "参数错误: " + err.Error()})
		return
	}

	if err := ctrl.sellerService.UpdateToken(c.Request.Context(), sellerID, req.AccessToken); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "凭证更新失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success"})
}

// Delete 下线卖家
// @Summary 下线卖家并清空其本地商品镜像
// @Tags Seller
// @Param id path int true "卖家ID"
// @Router /api/sellers/{id} [delete]
func (ctrl *SellerController) Delete(c *gin.Context) {
	sellerID, ok := sellerIDParam(c)
	if !ok {
		return
	}

	if err := ctrl.sellerService.DeleteSeller(c.Request.Context(), sellerID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "下线失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "success"})
}
