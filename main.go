package main

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"market_panic/internal/api"
	"market_panic/internal/models"
	"market_panic/internal/repository"
	"market_panic/internal/service"
	"market_panic/internal/storage"
	"market_panic/internal/utils"
	"market_panic/pkg/config"
)

func main() {
	// 載入應用程式配置
	// 從配置文件中讀取設置，如數據庫連接信息和服務器地址等
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// JWT 簽名密鑰由配置提供
	utils.SetSecret(cfg.JWT.Secret)

	// 初始化資料庫連接
	// 資料庫只存主持人帳號與房間紀錄，遊戲進行中的狀態都在記憶體內
	db, err := storage.NewPostgresDB(cfg.DB.Host, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.Port)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	// 確保在程序結束時關閉數據庫連接
	defer db.Close()

	// 自動遷移資料庫結構
	if err := db.AutoMigrate(&models.User{}, &models.Room{}); err != nil {
		logrus.Fatalf("Failed to auto migrate database: %v", err)
	}

	// 初始化 repositories
	repos := repository.NewRepositories(db)

	// 初始化 services
	services := service.NewServices(repos, cfg.Game.NewsCountdownSeconds)

	// 設置 Gin 路由
	r := gin.Default()
	api.SetupRoutes(r, services)

	// 啟動伺服器
	if err := r.Run(cfg.Server.Address); err != nil {
		logrus.Fatalf("Failed to run server: %v", err)
	}
}
