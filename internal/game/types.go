package game

import (
	"github.com/shopspring/decimal"
)

// Choice 定義玩家在單一回合中的操作選擇
type Choice string

const (
	ChoiceNone Choice = ""     // 尚未選擇（棄權）
	ChoiceBuy  Choice = "buy"  // 買入
	ChoiceHold Choice = "hold" // 持有
	ChoiceSell Choice = "sell" // 賣出
)

// ParseChoice 將客戶端傳來的字串轉換為 Choice
func ParseChoice(s string) (Choice, error) {
	switch Choice(s) {
	case ChoiceBuy, ChoiceHold, ChoiceSell:
		return Choice(s), nil
	default:
		return ChoiceNone, ErrInvalidChoice
	}
}

// Role 定義連線身份：主持人或玩家
type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

// Phase 定義回合狀態機的三個階段
type Phase string

const (
	PhaseIdle   Phase = "idle"   // 沒有進行中的回合
	PhaseOpen   Phase = "open"   // 回合開放，玩家可提交選擇
	PhaseLocked Phase = "locked" // 結算中，選擇凍結
)

// PricePoint 是價格歷史中的一個點，每次結算追加一筆
type PricePoint struct {
	Round int             `json:"round"`
	Price decimal.Decimal `json:"price"`
}

var (
	// InitialPrice 初始價格
	InitialPrice = decimal.NewFromInt(100)
	// StartingCapital 玩家初始資本
	StartingCapital = decimal.NewFromInt(100)
)

// NewsCountdownSeconds 抽取隨機新聞後自動結算的倒數秒數
const NewsCountdownSeconds = 10
