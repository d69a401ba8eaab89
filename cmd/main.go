package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"meli_sync_v1_202608/internal/config"
	"meli_sync_v1_202608/internal/controller"
	"meli_sync_v1_202608/internal/model"
	"meli_sync_v1_202608/internal/repository"
	"meli_sync_v1_202608/internal/router"
	"meli_sync_v1_202608/internal/service"
	"meli_sync_v1_202608/internal/task"
	"meli_sync_v1_202608/pkg/database"
	"meli_sync_v1_202608/pkg/logger"
	"meli_sync_v1_202608/pkg/meli"
)

// @title Meli 全球卖家商品同步系统 API
// @version 1.0
// @description 把 MercadoLibre 卖家目录镜像到本地库的同步服务
// @BasePath /api
func main() {
	// 1. 配置
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	zapLogger, err := logger.New(cfg.Server.Mode)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zapLogger.Sync()

	// 2. 数据库
	db, err := database.InitDB(cfg.Database.DSN,
		&model.GlobalSeller{},
		&model.Item{},
		&model.MarketplaceItem{},
	)
	if err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}

	// 3. 依赖装配
	sellerRepo := repository.NewSellerRepository(db)
	itemRepo := repository.NewItemRepository(db)

	meliClient := meli.NewClient(meli.ClientConfig{
		BaseURL:          cfg.Meli.BaseURL,
		Timeout:          cfg.Meli.Timeout(),
		MinInterval:      cfg.Meli.MinInterval(),
		RetryMax:         cfg.Meli.RetryMax,
		BackoffBase:      cfg.Meli.BackoffBase(),
		BackoffCap:       cfg.Meli.BackoffCap(),
		RateRetryDefault: cfg.Meli.RateRetry(),
	})

	jobs := task.NewJobRegistry()
	syncService := service.NewSyncService(sellerRepo, itemRepo, meliClient, jobs, cfg.Sync, zapLogger)
	itemService := service.NewItemService(sellerRepo, itemRepo, meliClient, zapLogger)
	sellerService := service.NewSellerService(sellerRepo, itemRepo, zapLogger)

	sellerCtl := controller.NewSellerController(sellerService)
	itemCtl := controller.NewItemController(itemService)
	syncCtl := controller.NewSyncController(syncService)

	// 4. 后台任务
	taskManager := task.NewTaskManager(
		&task.TaskManagerDeps{
			SellerRepo: sellerRepo,
			Syncer:     syncService,
			Jobs:       jobs,
		},
		&task.TaskManagerConfig{
			ItemEnabled:     cfg.Task.Enabled,
			ItemConcurrency: cfg.Task.Concurrency,
			IncrementalSpec: cfg.Task.IncrementalSpec,
			FullSpec:        cfg.Task.FullSpec,
		},
	)
	taskManager.Start()
	taskCtl := controller.NewTaskController(taskManager)

	// 5. HTTP 服务
	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()
	router.InitRoutes(r, sellerRepo, sellerCtl, itemCtl, syncCtl, taskCtl)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Printf("🚀 服务已启动，监听 :%d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务异常退出: %v", err)
		}
	}()

	// 6. 优雅退出：先停接收新请求，再停后台任务
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println(">>> 收到退出信号，开始优雅退出...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP 服务关闭超时: %v", err)
	}

	taskManager.Stop()
	log.Println(">>> 退出完成")
}
