package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"market_panic/internal/api/handlers"
	"market_panic/internal/middleware"
	"market_panic/internal/service"
)

func SetupRoutes(r *gin.Engine, services *service.Services) {
	// 初始化 handlers
	authHandler := handlers.NewAuthHandler(services.User)
	roomHandler := handlers.NewRoomHandler(services.Room)
	wsHandler := handlers.NewWebSocketHandler(services.WebSocket, services.Room)

	// API 路由群組
	api := r.Group("/api")

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "找不到該路徑",
		})
	})

	// 公開路由
	{
		// 主持人帳號相關
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)

		// 基本的健康檢查
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})

		// 玩家不需要帳號，掃碼或輸入房間代碼即可加入
		api.GET("/rooms/:code", roomHandler.GetRoom)              // 房間狀態快照
		api.POST("/rooms/:code/join", roomHandler.JoinRoom)       // 玩家加入房間
		api.POST("/rooms/:code/choice", roomHandler.SubmitChoice) // 玩家提交選擇

		// WebSocket 連接點（主持人帶 JWT、玩家帶 session token）
		api.GET("/rooms/:code/ws", wsHandler.HandleWebSocket)
	}

	// 需要驗證的路由（主持人操作）
	authorized := api.Group("/")
	authorized.Use(middleware.AuthMiddleware())
	{
		rooms := authorized.Group("/rooms")
		{
			rooms.GET("", roomHandler.ListRooms)   // 獲取房間列表
			rooms.POST("", roomHandler.CreateRoom) // 創建房間

			// 回合控制
			rooms.POST("/:code/start", roomHandler.StartRound) // 開啟回合
			rooms.POST("/:code/news", roomHandler.RandomNews)  // 抽隨機新聞
			rooms.POST("/:code/reveal", roomHandler.Reveal)    // 手動結算
			rooms.POST("/:code/reset", roomHandler.Reset)      // 重置遊戲
			rooms.POST("/:code/leave", roomHandler.Leave)      // 主持人離開
		}
	}
}
