package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"market_panic/internal/game"
	"market_panic/internal/service"
)

// RoomHandler 處理與遊戲房間相關的請求
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler 創建一個新的 RoomHandler 實例
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// CreateRoom 主持人建立新房間，回傳六碼房間代碼
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	hostID := c.GetUint("userID")

	code, err := h.roomService.CreateRoom(hostID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "創建房間失敗"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"code":     code,
		"join_url": "/?join=" + code, // 玩家掃碼或點連結後自動以這個代碼加入
	})
}

// ListRooms 查詢所有房間紀錄
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.roomService.ListRooms()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "無法查詢房間列表"})
		return
	}
	c.JSON(http.StatusOK, rooms)
}

// GetRoom 取得房間目前的完整狀態（回合、價格歷史、玩家名單）
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.roomService.GetRoom(c.Param("code"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "房間不存在"})
		return
	}

	c.JSON(http.StatusOK, room.Snapshot())
}

// JoinInput 玩家加入房間的請求
type JoinInput struct {
	Name         string `json:"name"`
	SessionToken string `json:"session_token"`
}

// JoinRoom 玩家加入房間。session_token 為空時由伺服器產生並回傳，
// 客戶端應快取它；之後帶同一個 token 重複呼叫都會取回同一位玩家。
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var input JoinInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	player, token, err := h.roomService.JoinAsPlayer(c.Param("code"), input.SessionToken, input.Name)
	if err != nil {
		status, msg := roomErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"player":        player,
		"session_token": token,
	})
}

// ChoiceInput 玩家提交選擇的請求
type ChoiceInput struct {
	SessionToken string `json:"session_token" binding:"required"`
	Choice       string `json:"choice" binding:"required"`
}

// SubmitChoice 玩家提交本回合的選擇（buy/hold/sell）。
// 回合鎖定時不是錯誤，選擇只是不會生效。
func (h *RoomHandler) SubmitChoice(c *gin.Context) {
	var input ChoiceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	choice, err := game.ParseChoice(input.Choice)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	player, err := h.roomService.ResolvePlayer(c.Param("code"), input.SessionToken)
	if err != nil {
		status, msg := roomErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	if err := h.roomService.SubmitChoice(c.Param("code"), player.ID, choice); err != nil {
		status, msg := roomErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "選擇已提交"})
}

// StartRoundInput 開啟回合的請求
type StartRoundInput struct {
	DurationSeconds int `json:"duration_seconds"` // 0 表示不限時，由主持人手動結算
}

// StartRound 主持人開啟新回合
func (h *RoomHandler) StartRound(c *gin.Context) {
	// 請求體可省略，省略時回合不限時
	var input StartRoundInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	hostID := c.GetUint("userID")
	if err := h.roomService.StartRound(c.Param("code"), hostID, input.DurationSeconds); err != nil {
		status, msg := roomErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "回合開始"})
}

// RandomNews 主持人抽一則隨機新聞並啟動自動結算倒數
func (h *RoomHandler) RandomNews(c *gin.Context) {
	hostID := c.GetUint("userID")

	news, err := h.roomService.StageRandomNews(c.Param("code"), hostID)
	if err != nil {
		status, msg := roomErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	// 影響值只回給主持人，結算前不會廣播給玩家
	c.JSON(http.StatusOK, news)
}

// Reveal 主持人手動結算本回合
func (h *RoomHandler) Reveal(c *gin.Context) {
	hostID := c.GetUint("userID")

	if err := h.roomService.Reveal(c.Param("code"), hostID); err != nil {
		status, msg := roomErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "回合已結算"})
}

// Reset 主持人把遊戲整個重來
func (h *RoomHandler) Reset(c *gin.Context) {
	hostID := c.GetUint("userID")

	if err := h.roomService.ResetGame(c.Param("code"), hostID); err != nil {
		status, msg := roomErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "遊戲已重置"})
}

// Leave 主持人離開，房間終結
func (h *RoomHandler) Leave(c *gin.Context) {
	hostID := c.GetUint("userID")

	if err := h.roomService.LeaveAsHost(c.Param("code"), hostID); err != nil {
		status, msg := roomErrorStatus(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "房間已關閉"})
}

// roomErrorStatus 把領域錯誤轉成對應的 HTTP 狀態碼
func roomErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, game.ErrUnknownRoom):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, game.ErrRoomClosed):
		return http.StatusGone, err.Error()
	case errors.Is(err, game.ErrNotHost):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, game.ErrUnknownPlayer):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusBadRequest, err.Error()
	}
}
