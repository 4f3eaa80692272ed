package service

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"market_panic/internal/game"
	"market_panic/internal/models"
)

// Client 代表一個 WebSocket 客戶端連接
type Client struct {
	Conn         *websocket.Conn      // WebSocket 連接
	RoomCode     string               // 房間代碼
	Role         game.Role            // 連線身份（host/player）
	PlayerID     string               // 玩家 ID，主持人連線時為空
	SessionToken string               // 玩家的 session token，重連時識別身份用
	SendChan     chan *models.Message // 訊息發送通道，用於異步傳送訊息
}

// MessageHandler 處理客戶端送進來的訊息
type MessageHandler func(client *Client, msg *models.Message)

// WebSocketManager 管理所有的 WebSocket 連接和訊息傳遞
type WebSocketManager struct {
	clients    map[string]map[*Client]bool // 兩層 map: roomCode -> client -> bool
	clientsMux sync.RWMutex                // 用於保護 clients map 的讀寫鎖
	onMessage  MessageHandler
	onHostGone func(roomCode string)
}

// NewWebSocketManager 創建並初始化新的 WebSocket 服務
func NewWebSocketManager() *WebSocketManager {
	return &WebSocketManager{
		clients: make(map[string]map[*Client]bool),
	}
}

// SetMessageHandler 設定收到客戶端訊息時的處理函數。
// 在服務組裝階段呼叫一次，避免 WebSocketManager 與 RoomService 互相依賴。
func (s *WebSocketManager) SetMessageHandler(handler MessageHandler) {
	s.onMessage = handler
}

// SetHostGoneHandler 設定主持人連線消失時的處理函數
func (s *WebSocketManager) SetHostGoneHandler(handler func(roomCode string)) {
	s.onHostGone = handler
}

// Register 建立客戶端並加入房間名單。
// 從這一刻起房間的廣播就會排進這個客戶端的隊列。
func (s *WebSocketManager) Register(conn *websocket.Conn, roomCode string, role game.Role, playerID, sessionToken string) *Client {
	client := &Client{
		Conn:         conn,
		RoomCode:     roomCode,
		Role:         role,
		PlayerID:     playerID,
		SessionToken: sessionToken,
		SendChan:     make(chan *models.Message, 256), // 設置緩衝大小為 256 的訊息通道
	}
	s.addClient(client)
	return client
}

// Send 把訊息排進單一客戶端的發送隊列，已移除的客戶端直接略過
func (s *WebSocketManager) Send(client *Client, message *models.Message) {
	s.clientsMux.RLock()
	defer s.clientsMux.RUnlock()

	if !s.clients[client.RoomCode][client] {
		return
	}
	select {
	case client.SendChan <- message:
	default:
	}
}

// Serve 啟動讀寫處理，阻塞直到連線結束
func (s *WebSocketManager) Serve(client *Client) {
	// 確保連接關閉時清理資源
	defer func() {
		s.removeClient(client)
		client.Conn.Close()
		if client.Role == game.RoleHost && s.onHostGone != nil {
			s.onHostGone(client.RoomCode)
		}
	}()

	go s.writePump(client)
	s.readPump(client)
}

// HandleConnection 處理新的 WebSocket 連接請求，阻塞直到連線結束
func (s *WebSocketManager) HandleConnection(conn *websocket.Conn, roomCode string, role game.Role, playerID, sessionToken string) {
	s.Serve(s.Register(conn, roomCode, role, playerID, sessionToken))
}

// readPump 持續監聽並處理從客戶端接收的訊息
func (s *WebSocketManager) readPump(client *Client) {
	client.Conn.SetReadLimit(4096) // 設置最大訊息大小為 4KB
	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).Warn("websocket unexpected close error")
			}
			break
		}

		// 解析接收到的訊息
		var msg models.Message
		if err := json.Unmarshal(message, &msg); err != nil {
			logrus.WithError(err).Warn("message parse error")
			continue
		}

		// 訊息的來源資訊以連線為準，不信任客戶端自己填的值
		msg.RoomCode = client.RoomCode
		msg.PlayerID = client.PlayerID

		if s.onMessage != nil {
			s.onMessage(client, &msg)
		}
	}
}

// writePump 處理向客戶端發送訊息的邏輯
func (s *WebSocketManager) writePump(client *Client) {
	// 設置心跳檢查計時器
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.SendChan:
			// 設置寫入超時
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// 獲取寫入器並發送訊息
			w, err := client.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			// JSON 編碼
			messageBytes, err := json.Marshal(message)
			if err != nil {
				logrus.WithError(err).Warn("message encoding error")
				continue
			}

			if _, err := w.Write(messageBytes); err != nil {
				return
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			// 發送心跳包
			client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// BroadcastToRoom 向房間內的所有客戶端廣播訊息。
// 送訊息時持著讀鎖，名單上的客戶端通道必定還開著。
func (s *WebSocketManager) BroadcastToRoom(roomCode string, message *models.Message) {
	var slow []*Client

	s.clientsMux.RLock()
	for client := range s.clients[roomCode] {
		select {
		case client.SendChan <- message:
			// 訊息成功加入發送隊列
		default:
			// 客戶端訊息隊列已滿，稍後踢掉
			slow = append(slow, client)
		}
	}
	s.clientsMux.RUnlock()

	for _, client := range slow {
		s.removeClient(client)
		client.Conn.Close()
	}
}

// addClient 安全地添加新的客戶端連接
func (s *WebSocketManager) addClient(client *Client) {
	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()

	if s.clients[client.RoomCode] == nil {
		s.clients[client.RoomCode] = make(map[*Client]bool)
	}
	s.clients[client.RoomCode][client] = true
}

// removeClient 安全地移除客戶端連接。
// SendChan 由這裡統一關閉，和移出名單在同一把鎖內完成，
// 重複呼叫只會關閉一次，移除之後這個連線不會再收到任何廣播。
func (s *WebSocketManager) removeClient(client *Client) {
	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()

	clients, ok := s.clients[client.RoomCode]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.SendChan)

	// 如果房間空了，刪除房間
	if len(clients) == 0 {
		delete(s.clients, client.RoomCode)
	}
}

// RoomClients 獲取指定房間的在線客戶端數量
func (s *WebSocketManager) RoomClients(roomCode string) int {
	s.clientsMux.RLock()
	defer s.clientsMux.RUnlock()

	return len(s.clients[roomCode])
}
