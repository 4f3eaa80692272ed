package service

import (
	"market_panic/internal/models"
)

// Broadcaster 是遊戲核心與即時傳輸層之間的邊界。
// WebSocketManager 是正式的實作；沒有配置即時頻道時退回 NoopBroadcaster，
// 遊戲仍然可以在單機模式下正常運作，同步只是不會發生。
type Broadcaster interface {
	BroadcastToRoom(roomCode string, message *models.Message)
}

// NoopBroadcaster 丟棄所有訊息的空實作
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastToRoom(string, *models.Message) {}
