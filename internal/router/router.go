package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"meli_sync_v1_202608/internal/controller"
	"meli_sync_v1_202608/internal/middleware"
	"meli_sync_v1_202608/internal/repository"
)

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine,
	sellerRepo repository.SellerRepository,
	sellerCtl *controller.SellerController,
	itemCtl *controller.ItemController,
	syncCtl *controller.SyncController,
	taskCtl *controller.TaskController) {

	// 健康检查
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	limiter := middleware.NewSyncRateLimiter()
	ownership := middleware.SellerOwnership(sellerRepo)

	// API 路由组
	api := r.Group("/api")
	{
		// task 后台任务
		tasks := api.Group("/tasks")
		{
			tasks.POST("/item-sync", taskCtl.TriggerAll)
			tasks.GET("/status", taskCtl.Status)
		}

		// seller 卖家管理
		sellers := api.Group("/sellers")
		{
			// POST /api/sellers
			sellers.POST("", sellerCtl.Create)
			sellers.GET("", sellerCtl.GetList)

			// 以下路由都带 :id，统一做归属校验
			one := sellers.Group("/:id", ownership)
			{
				one.GET("", sellerCtl.GetDetail)
				one.PUT("/token", sellerCtl.UpdateToken)
				one.DELETE("", sellerCtl.Delete)

				// sync 同步控制面
				sync := one.Group("/sync")
				{
					// 手动触发带冷却，控制操作不限流
					sync.POST("/start",
						middleware.SyncRateLimit(limiter, middleware.SyncTypeItem, 0),
						syncCtl.Start)
					sync.POST("/pause", syncCtl.Pause)
					sync.POST("/resume", syncCtl.Resume)
					sync.POST("/stop", syncCtl.Stop)
					sync.GET("/status", syncCtl.Status)
				}

				// item 本地商品镜像
				items := one.Group("/items")
				{
					items.GET("", itemCtl.GetItems)
					items.POST("/check-existing", itemCtl.CheckExisting)
					items.GET("/:item_id", itemCtl.GetItem)
					items.POST("/:item_id/resync", itemCtl.Resync)
					items.POST("/:item_id/marketplace-items/refresh", itemCtl.RefreshMarketplaces)
				}
			}
		}
	}
}
