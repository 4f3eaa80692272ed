package game

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertIdempotent(t *testing.T) {
	l := NewLedger()

	first := l.Upsert("token-1", "Alice")
	second := l.Upsert("token-1", "Alice")

	// 同一個 token 永遠拿回同一位玩家，名單不會重複
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, l.Len())
	assert.True(t, second.Capital.Equal(StartingCapital))
}

func TestUpsertUpdatesName(t *testing.T) {
	l := NewLedger()

	l.Upsert("token-1", "Alice")
	p := l.Upsert("token-1", "Alicia")

	assert.Equal(t, "Alicia", p.Name)
	assert.Equal(t, 1, l.Len())
}

func TestUpsertDefaultName(t *testing.T) {
	l := NewLedger()

	p := l.Upsert("token-1", "")
	assert.True(t, strings.HasPrefix(p.Name, "Player-"), "got %q", p.Name)
}

func TestGetByToken(t *testing.T) {
	l := NewLedger()
	created := l.Upsert("token-1", "Alice")

	p, ok := l.GetByToken("token-1")
	require.True(t, ok)
	assert.Equal(t, created.ID, p.ID)

	_, ok = l.GetByToken("nope")
	assert.False(t, ok)
}

func TestRecordChoice(t *testing.T) {
	l := NewLedger()
	p := l.Upsert("token-1", "Alice")

	require.NoError(t, l.RecordChoice(p.ID, ChoiceBuy))
	assert.Equal(t, ChoiceBuy, l.players[p.ID].Choice)

	// 鎖定前可以改變主意
	require.NoError(t, l.RecordChoice(p.ID, ChoiceSell))
	assert.Equal(t, ChoiceSell, l.players[p.ID].Choice)

	assert.ErrorIs(t, l.RecordChoice("ghost", ChoiceBuy), ErrUnknownPlayer)
}

func TestFractionsCountAbstainers(t *testing.T) {
	l := NewLedger()
	buyer := l.Upsert("t1", "a")
	seller := l.Upsert("t2", "b")
	l.Upsert("t3", "c") // 棄權

	require.NoError(t, l.RecordChoice(buyer.ID, ChoiceBuy))
	require.NoError(t, l.RecordChoice(seller.ID, ChoiceSell))

	pb, ps := l.Fractions()
	// 棄權者計入分母
	assert.InDelta(t, 1.0/3.0, pb, 1e-12)
	assert.InDelta(t, 1.0/3.0, ps, 1e-12)
}

func TestFractionsEmpty(t *testing.T) {
	l := NewLedger()
	pb, ps := l.Fractions()
	assert.Zero(t, pb)
	assert.Zero(t, ps)
}

func TestSettleHoldConservation(t *testing.T) {
	for _, delta := range []float64{-0.2, -0.04, 0, 0.06, 0.2} {
		l := NewLedger()
		p := l.Upsert("t1", "holder")
		require.NoError(t, l.RecordChoice(p.ID, ChoiceHold))

		l.Settle(delta)

		got, _ := l.Get(p.ID)
		assert.True(t, got.Capital.Equal(StartingCapital), "delta=%v got %s", delta, got.Capital)
	}
}

func TestSettleNonePassThrough(t *testing.T) {
	l := NewLedger()
	p := l.Upsert("t1", "idle")

	l.Settle(0.2)

	got, _ := l.Get(p.ID)
	assert.True(t, got.Capital.Equal(StartingCapital))
}

func TestSettleAppliesAndResetsChoices(t *testing.T) {
	l := NewLedger()
	buyer := l.Upsert("t1", "buyer")
	seller := l.Upsert("t2", "seller")
	require.NoError(t, l.RecordChoice(buyer.ID, ChoiceBuy))
	require.NoError(t, l.RecordChoice(seller.ID, ChoiceSell))

	l.Settle(0.06)

	b, _ := l.Get(buyer.ID)
	s, _ := l.Get(seller.ID)
	assert.True(t, b.Capital.Equal(decimal.NewFromFloat(106)), "got %s", b.Capital)
	assert.True(t, s.Capital.Equal(decimal.NewFromFloat(94)), "got %s", s.Capital)

	// 結算後所有選擇歸零
	assert.Equal(t, ChoiceNone, b.Choice)
	assert.Equal(t, ChoiceNone, s.Choice)
}

func TestSnapshotIsCopy(t *testing.T) {
	l := NewLedger()
	p := l.Upsert("t1", "Alice")

	snap := l.Snapshot()
	entry := snap[p.ID]
	entry.Name = "Mallory"
	snap[p.ID] = entry

	got, _ := l.Get(p.ID)
	assert.Equal(t, "Alice", got.Name)
}

func TestClear(t *testing.T) {
	l := NewLedger()
	l.Upsert("t1", "Alice")
	l.Clear()

	assert.Zero(t, l.Len())
	_, ok := l.GetByToken("t1")
	assert.False(t, ok)
}
