package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"market_panic/internal/game"
)

// 即時訊息類型。客戶端與伺服器之間的所有 WebSocket 訊息都用同一個信封格式。
const (
	// 玩家 -> 伺服器
	MsgJoinAsPlayer = "join_as_player"
	MsgPlayerChoice = "player_choice"

	// 伺服器 -> 所有連線
	MsgRoundStarted  = "round_started"
	MsgCountdownTick = "countdown_tick"
	MsgNewsUpdate    = "news_update"
	MsgUpdatePlayers = "update_players"
	MsgRoomReset     = "room_reset"
	MsgHostLeft      = "host_left"

	// 伺服器 -> 單一連線，連線（或重連）建立時同步目前狀態
	MsgRoomState = "room_state"
)

// Message 代表一個統一的訊息結構，WebSocket 雙向傳輸都使用它
type Message struct {
	Type      string          `json:"type"`
	RoomCode  string          `json:"room_code,omitempty"`
	PlayerID  string          `json:"player_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// RoundStartedPayload 新回合開啟
type RoundStartedPayload struct {
	Round           int `json:"round"`
	DurationSeconds int `json:"duration_seconds"`
}

// CountdownTickPayload 自動結算倒數
type CountdownTickPayload struct {
	Remaining int `json:"remaining"`
}

// NewsUpdatePayload 結算結果廣播
type NewsUpdatePayload struct {
	Text          string          `json:"text"`
	Round         int             `json:"round"`
	Price         decimal.Decimal `json:"price"`
	Change        decimal.Decimal `json:"change"`
	PercentChange float64         `json:"percent_change"`
}

// PlayerChoicePayload 玩家投票
type PlayerChoicePayload struct {
	Choice string `json:"choice"`
}

// JoinAsPlayerPayload 玩家請求建立或取回身份
type JoinAsPlayerPayload struct {
	Name string `json:"name"`
}

// NewMessage 建立一個新的即時訊息，payload 會被 JSON 編碼
func NewMessage(msgType, roomCode string, payload interface{}) *Message {
	msg := &Message{
		Type:      msgType,
		RoomCode:  roomCode,
		Timestamp: time.Now(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err == nil {
			msg.Payload = data
		}
	}
	return msg
}

// NewUpdatePlayersMessage 建立玩家名單快照訊息
func NewUpdatePlayersMessage(roomCode string, players map[string]game.Player) *Message {
	return NewMessage(MsgUpdatePlayers, roomCode, players)
}
