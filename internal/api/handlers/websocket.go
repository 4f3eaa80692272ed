package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"market_panic/internal/game"
	"market_panic/internal/models"
	"market_panic/internal/service"
	"market_panic/internal/utils"
)

// 定義 WebSocket 升級器
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 注意：在生產環境中，應該檢查 origin
	},
}

// WebSocketHandler 處理 WebSocket 連接
type WebSocketHandler struct {
	wsManager   *service.WebSocketManager
	roomService *service.RoomService
}

// NewWebSocketHandler 創建一個新的 WebSocketHandler 實例
func NewWebSocketHandler(wsManager *service.WebSocketManager, roomService *service.RoomService) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:   wsManager,
		roomService: roomService,
	}
}

// HandleWebSocket 處理 WebSocket 連接請求。
// 玩家帶 session_token 連線；主持人帶 token（JWT）連線。
// 連線建立後先推一次目前的房間狀態，斷線重連的客戶端因此能立刻對齊。
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	code := c.Param("code")

	room, err := h.roomService.GetRoom(code)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "房間不存在"})
		return
	}

	// 先確定連線身份，再升級連線
	role, playerID, sessionToken, err := h.identify(c, room)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "升級WebSocket失敗"})
		return
	}

	// 先註冊再取快照：註冊之後房間的廣播都會排進隊列，
	// 結算不會在快照和第一則廣播之間漏掉
	client := h.wsManager.Register(conn, code, role, playerID, sessionToken)

	// 同步目前狀態給剛連上（或重連）的客戶端
	h.wsManager.Send(client, models.NewMessage(models.MsgRoomState, code, room.Snapshot()))

	// 處理客戶端連接，阻塞直到斷線
	h.wsManager.Serve(client)
}

// identify 確定連線者在房間中的身份。
// 只有房間的主持人能以 host 身份連線；玩家必須先加入過房間。
func (h *WebSocketHandler) identify(c *gin.Context, room *game.Room) (game.Role, string, string, error) {
	if jwtToken := c.Query("token"); jwtToken != "" {
		claims, err := utils.ParseToken(jwtToken)
		if err != nil {
			return "", "", "", game.ErrNotHost
		}
		if claims.UserID != room.HostID {
			return "", "", "", game.ErrNotHost
		}
		return game.RoleHost, "", "", nil
	}

	sessionToken := c.Query("session_token")
	if sessionToken == "" {
		return "", "", "", game.ErrUnknownPlayer
	}
	player, ok := room.PlayerByToken(sessionToken)
	if !ok {
		return "", "", "", game.ErrUnknownPlayer
	}
	return game.RolePlayer, player.ID, sessionToken, nil
}
