package game

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Player 代表房間中的一位玩家
type Player struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Capital decimal.Decimal `json:"capital"`
	Choice  Choice          `json:"choice"`
}

// Ledger 管理房間內所有玩家的身份、資本與本回合選擇。
// 同一個 session token 永遠對應同一位玩家，重新整理頁面不會產生新帳號。
// Ledger 本身不做同步，所有操作都在 Room 的鎖內執行。
type Ledger struct {
	players map[string]*Player // playerID -> Player
	tokens  map[string]string  // sessionToken -> playerID
}

func NewLedger() *Ledger {
	return &Ledger{
		players: make(map[string]*Player),
		tokens:  make(map[string]string),
	}
}

// Upsert 以 session token 建立或取回玩家，重複呼叫是冪等的。
// 已存在的玩家只會更新名稱，資本與選擇維持不變。
func (l *Ledger) Upsert(token, name string) *Player {
	if id, ok := l.tokens[token]; ok {
		p := l.players[id]
		if name != "" && name != p.Name {
			p.Name = name
		}
		return p
	}

	id := uuid.NewString()
	if name == "" {
		name = fmt.Sprintf("Player-%s", id[:4])
	}
	p := &Player{
		ID:      id,
		Name:    name,
		Capital: StartingCapital,
		Choice:  ChoiceNone,
	}
	l.players[id] = p
	l.tokens[token] = id
	return p
}

// Get 以玩家 ID 查詢玩家
func (l *Ledger) Get(playerID string) (*Player, bool) {
	p, ok := l.players[playerID]
	return p, ok
}

// GetByToken 以 session token 查詢玩家，斷線重連時使用
func (l *Ledger) GetByToken(token string) (*Player, bool) {
	id, ok := l.tokens[token]
	if !ok {
		return nil, false
	}
	return l.players[id], true
}

// RecordChoice 記錄玩家本回合的選擇，鎖定前可以反覆更改
func (l *Ledger) RecordChoice(playerID string, c Choice) error {
	p, ok := l.players[playerID]
	if !ok {
		return ErrUnknownPlayer
	}
	p.Choice = c
	return nil
}

// Fractions 回傳買入與賣出佔全體玩家的比例。
// 棄權玩家計入分母。沒有玩家時兩者皆為 0。
func (l *Ledger) Fractions() (buyFraction, sellFraction float64) {
	n := len(l.players)
	if n == 0 {
		return 0, 0
	}
	var buy, sell int
	for _, p := range l.players {
		switch p.Choice {
		case ChoiceBuy:
			buy++
		case ChoiceSell:
			sell++
		}
	}
	return float64(buy) / float64(n), float64(sell) / float64(n)
}

// Settle 依實際漲跌幅結算所有玩家的資本，並將選擇重設為 None。
// 每回合只能套用一次，由狀態機的階段轉換保證。
func (l *Ledger) Settle(totalDelta float64) {
	for _, p := range l.players {
		p.Capital = ApplyToCapital(p.Capital, p.Choice, totalDelta)
		p.Choice = ChoiceNone
	}
}

// ResetChoices 清除所有玩家的選擇，開新回合時避免殘留上一回合的投票
func (l *Ledger) ResetChoices() {
	for _, p := range l.players {
		p.Choice = ChoiceNone
	}
}

// Snapshot 回傳玩家名單的複本，用於廣播
func (l *Ledger) Snapshot() map[string]Player {
	out := make(map[string]Player, len(l.players))
	for id, p := range l.players {
		out[id] = *p
	}
	return out
}

// Len 回傳玩家人數
func (l *Ledger) Len() int {
	return len(l.players)
}

// Clear 移除所有玩家，重置遊戲時使用
func (l *Ledger) Clear() {
	l.players = make(map[string]*Player)
	l.tokens = make(map[string]string)
}
