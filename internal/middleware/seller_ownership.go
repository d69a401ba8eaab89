package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"meli_sync_v1_202608/internal/repository"
)

// ==================== 卖家归属校验中间件 ====================

// AccountHeader 调用方账号标识头
const AccountHeader = "X-Account-ID"

// SellerOwnership 卖家归属校验
// 路径里的 :id 对应的卖家必须属于请求头声明的账号；
// 卖家未设置归属账号（OwnerAccountID 为空）时视为共享，放行。
// 校验通过后把卖家 ID 存入 gin.Context，下游 handler 可直接取用。
func SellerOwnership(sellerRepo repository.SellerRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerIDStr := c.Param("id")
		sellerID, err := strconv.ParseInt(sellerIDStr, 10, 64)
		if err != nil || sellerID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的卖家 ID",
			})
			c.Abort()
			return
		}

		seller, err := sellerRepo.GetByID(c.Request.Context(), sellerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{
					"code":    404,
					"message": "卖家不存在",
				})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{
					"code":    500,
					"message": "查询卖家失败: " + err.Error(),
				})
			}
			c.Abort()
			return
		}

		if seller.OwnerAccountID != "" {
			account := c.GetHeader(AccountHeader)
			if account == "" || account != seller.OwnerAccountID {
				c.JSON(http.StatusForbidden, gin.H{
					"code":    403,
					"message": "无权操作该卖家",
				})
				c.Abort()
				return
			}
		}

		c.Set("seller_id", sellerID)
		c.Next()
	}
}
