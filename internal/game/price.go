package game

import (
	"math"
	"math/rand"

	"github.com/shopspring/decimal"
)

const (
	// majorityThreshold 超過 40% 視為強勢訊號
	majorityThreshold = 0.4
	strategyUp        = 0.06
	strategyDown      = -0.06

	// MaxImpact 單回合漲跌幅上限（±20%），是安全不變量而非可調參數
	MaxImpact = 0.2
)

// News 代表一則新聞事件與它對價格的額外影響
type News struct {
	Text   string  `json:"text"`
	Impact float64 `json:"impact"`
}

// NewsPool 固定的新聞池，隨機抽取
var NewsPool = []News{
	{Text: "Central bank cuts rates, markets turn optimistic.", Impact: 0.05},
	{Text: "Rumors of a major default trigger panic selling.", Impact: -0.07},
	{Text: "Earnings strongly beat expectations, analysts upgrade targets.", Impact: 0.08},
	{Text: "Geopolitical tensions escalate, risk-off mood in markets.", Impact: -0.06},
	{Text: "No major news: markets relatively calm.", Impact: 0.0},
}

// DrawNews 從新聞池中隨機抽取一則
func DrawNews() News {
	return NewsPool[rand.Intn(len(NewsPool))]
}

// ComputeStrategyDelta 根據買入與賣出比例計算多數方訊號。
// 棄權的玩家仍計入分母，但本身不會推動價格。
// 回傳值只會是 {-0.06, 0, +0.06} 之一；比例相同或未過門檻時為中性。
func ComputeStrategyDelta(buyFraction, sellFraction float64) float64 {
	if buyFraction > majorityThreshold && buyFraction > sellFraction {
		return strategyUp
	}
	if sellFraction > majorityThreshold && sellFraction > buyFraction {
		return strategyDown
	}
	return 0
}

// TotalDelta 將多數方訊號與新聞影響線性相加，並將總漲跌幅限制在 ±20% 內
func TotalDelta(strategyDelta, newsImpact float64) float64 {
	return clamp(strategyDelta+newsImpact, -MaxImpact, MaxImpact)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ApplyToPrice 將總漲跌幅套用到價格上，結果四捨五入到小數兩位
func ApplyToPrice(price decimal.Decimal, totalDelta float64) decimal.Decimal {
	return price.Mul(decimal.NewFromFloat(1 + totalDelta)).Round(2)
}

// PlayerEffect 計算單一玩家的回合損益比例。
// 買入方向正確（實際漲幅為正）時獲利 |totalDelta|，方向錯誤時虧損；
// 賣出為鏡像；持有與棄權不受影響。
// 注意損益取決於「包含新聞在內的實際漲跌」，不只是多數方訊號。
func PlayerEffect(choice Choice, totalDelta float64) float64 {
	switch choice {
	case ChoiceBuy:
		if totalDelta > 0 {
			return math.Abs(totalDelta)
		}
		return -math.Abs(totalDelta)
	case ChoiceSell:
		if totalDelta < 0 {
			return math.Abs(totalDelta)
		}
		return -math.Abs(totalDelta)
	default:
		return 0
	}
}

// ApplyToCapital 將回合損益套用到玩家資本，結果四捨五入到小數兩位
func ApplyToCapital(capital decimal.Decimal, choice Choice, totalDelta float64) decimal.Decimal {
	effect := PlayerEffect(choice, totalDelta)
	if effect == 0 {
		return capital
	}
	return capital.Mul(decimal.NewFromFloat(1 + effect)).Round(2)
}
