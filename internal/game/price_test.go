package game

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeStrategyDelta(t *testing.T) {
	tests := []struct {
		name string
		buy  float64
		sell float64
		want float64
	}{
		{"strong buy majority", 0.667, 0.333, 0.06},
		{"strong sell majority", 0.333, 0.667, -0.06},
		{"tie above threshold", 0.5, 0.5, 0},
		{"both below threshold", 0.3, 0.3, 0},
		{"exactly at threshold is not enough", 0.4, 0.2, 0},
		{"just over threshold", 0.41, 0.2, 0.06},
		{"no players", 0, 0, 0},
		{"unanimous buy", 1, 0, 0.06},
		{"unanimous sell", 0, 1, -0.06},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeStrategyDelta(tt.buy, tt.sell))
		})
	}
}

func TestComputeStrategyDeltaRange(t *testing.T) {
	// 對所有合法比例組合，輸出只會是 {-0.06, 0, +0.06} 之一
	for pb := 0.0; pb <= 1.0; pb += 0.05 {
		for ps := 0.0; pb+ps <= 1.0; ps += 0.05 {
			got := ComputeStrategyDelta(pb, ps)
			assert.Contains(t, []float64{-0.06, 0, 0.06}, got, "pb=%v ps=%v", pb, ps)
		}
	}
}

func TestTotalDeltaClamp(t *testing.T) {
	assert.InDelta(t, -0.04, TotalDelta(0.06, -0.10), 1e-12)
	assert.InDelta(t, 0.11, TotalDelta(0.06, 0.05), 1e-12)
	assert.Equal(t, 0.2, TotalDelta(0.06, 0.2))
	assert.Equal(t, -0.2, TotalDelta(-0.06, -0.2))
	assert.Equal(t, 0.0, TotalDelta(0, 0))

	for _, strategy := range []float64{-0.06, 0, 0.06} {
		for news := -0.2; news <= 0.2; news += 0.01 {
			got := TotalDelta(strategy, news)
			assert.InDelta(t, clamp(strategy+news, -MaxImpact, MaxImpact), got, 1e-12)
			assert.LessOrEqual(t, got, MaxImpact)
			assert.GreaterOrEqual(t, got, -MaxImpact)
		}
	}
}

func TestApplyToPrice(t *testing.T) {
	price := decimal.NewFromInt(100)

	got := ApplyToPrice(price, 0.06)
	require.True(t, got.Equal(decimal.NewFromFloat(106)), "got %s", got)

	got = ApplyToPrice(price, -0.04)
	require.True(t, got.Equal(decimal.NewFromFloat(96)), "got %s", got)

	// 結果四捨五入到小數兩位
	got = ApplyToPrice(decimal.NewFromFloat(100.55), 0.0333)
	assert.True(t, got.Equal(decimal.NewFromFloat(103.90)), "got %s", got)
}

func TestPlayerEffect(t *testing.T) {
	// 買方在實際上漲時獲利，下跌時虧損；賣方相反；持有與棄權不動
	assert.Equal(t, 0.06, PlayerEffect(ChoiceBuy, 0.06))
	assert.Equal(t, -0.04, PlayerEffect(ChoiceBuy, -0.04))
	assert.Equal(t, 0.04, PlayerEffect(ChoiceSell, -0.04))
	assert.Equal(t, -0.06, PlayerEffect(ChoiceSell, 0.06))
	assert.Equal(t, 0.0, PlayerEffect(ChoiceHold, 0.2))
	assert.Equal(t, 0.0, PlayerEffect(ChoiceNone, -0.2))
	assert.Equal(t, 0.0, PlayerEffect(ChoiceBuy, 0))
	assert.Equal(t, 0.0, PlayerEffect(ChoiceSell, 0))
}

func TestApplyToCapital(t *testing.T) {
	capital := decimal.NewFromInt(100)

	got := ApplyToCapital(capital, ChoiceBuy, 0.06)
	assert.True(t, got.Equal(decimal.NewFromFloat(106)), "got %s", got)

	got = ApplyToCapital(capital, ChoiceSell, 0.06)
	assert.True(t, got.Equal(decimal.NewFromFloat(94)), "got %s", got)

	// 持有者的資本在任何漲跌下都不變
	for _, delta := range []float64{-0.2, -0.04, 0, 0.06, 0.2} {
		got = ApplyToCapital(capital, ChoiceHold, delta)
		assert.True(t, got.Equal(capital), "delta=%v got %s", delta, got)
	}
}

func TestDrawNews(t *testing.T) {
	for i := 0; i < 20; i++ {
		assert.Contains(t, NewsPool, DrawNews())
	}
}

func TestParseChoice(t *testing.T) {
	for _, s := range []string{"buy", "hold", "sell"} {
		c, err := ParseChoice(s)
		require.NoError(t, err)
		assert.Equal(t, Choice(s), c)
	}

	_, err := ParseChoice("yolo")
	assert.ErrorIs(t, err, ErrInvalidChoice)
	_, err = ParseChoice("")
	assert.ErrorIs(t, err, ErrInvalidChoice)
}
