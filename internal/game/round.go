package game

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Room 代表一場進行中的遊戲：回合狀態機、玩家帳本與價格歷史。
// 所有狀態都在記憶體內，房間結束後即失效。
// 一把鎖保護整個房間，結算因此是不可分割的單一動作。
type Room struct {
	Code      string
	HostID    uint
	CreatedAt time.Time

	mu        sync.Mutex
	phase     Phase
	round     int
	countdown int
	stopTimer chan struct{} // 非 nil 表示倒數計時器正在跑
	news      News
	price     decimal.Decimal
	history   []PricePoint
	ledger    *Ledger
	closed    bool
}

// Settlement 是一次結算的完整結果，交給上層廣播
type Settlement struct {
	Round         int
	News          string
	NewsImpact    float64
	StrategyDelta float64
	TotalDelta    float64
	PrevPrice     decimal.Decimal
	Price         decimal.Decimal
	Players       map[string]Player
}

// Snapshot 是房間目前狀態的唯讀複本，提供查詢與重連同步
type Snapshot struct {
	Code      string            `json:"code"`
	Phase     Phase             `json:"phase"`
	Round     int               `json:"round"`
	Countdown int               `json:"countdown"`
	News      string            `json:"news"`
	Price     decimal.Decimal   `json:"price"`
	History   []PricePoint      `json:"history"`
	Players   map[string]Player `json:"players"`
}

// NewRoom 建立新房間：第 1 回合、初始價格 100、歷史先種下第 0 回合的起點
func NewRoom(code string, hostID uint) *Room {
	return &Room{
		Code:      code,
		HostID:    hostID,
		CreatedAt: time.Now(),
		phase:     PhaseIdle,
		round:     1,
		price:     InitialPrice,
		history:   []PricePoint{{Round: 0, Price: InitialPrice}},
		ledger:    NewLedger(),
	}
}

// Join 以 session token 加入房間，重複呼叫取回同一位玩家
func (r *Room) Join(token, name string) (Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Player{}, ErrRoomClosed
	}
	return *r.ledger.Upsert(token, name), nil
}

// PlayerByToken 以 session token 查回玩家，重連時不會產生新身份
func (r *Room) PlayerByToken(token string) (Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.ledger.GetByToken(token)
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// SubmitChoice 提交玩家本回合的選擇。
// 回合鎖定或尚未開始時回傳 ErrRoundLocked，由上層決定如何呈現。
func (r *Room) SubmitChoice(playerID string, c Choice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomClosed
	}
	if r.phase != PhaseOpen {
		return ErrRoundLocked
	}
	return r.ledger.RecordChoice(playerID, c)
}

// StartRound 開啟回合（Idle 或 Open 都可以重新開啟）。
// 為避免殘留上一回合的投票，所有玩家的選擇會被清除。
// durationSeconds > 0 時啟動倒數，歸零自動觸發 onExpire。
func (r *Room) StartRound(durationSeconds int, onTick func(remaining int), onExpire func()) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrRoomClosed
	}

	r.phase = PhaseOpen
	r.ledger.ResetChoices()
	r.stopCountdownLocked()
	r.countdown = 0
	if durationSeconds > 0 {
		r.startCountdownLocked(durationSeconds, onTick, onExpire)
	}
	return r.round, nil
}

// StageNews 設定本回合的新聞事件，並啟動自動結算倒數
func (r *Room) StageNews(n News, countdownSeconds int, onTick func(remaining int), onExpire func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomClosed
	}
	if r.phase != PhaseOpen {
		return ErrRoundNotOpen
	}
	r.news = n
	if countdownSeconds > 0 {
		r.startCountdownLocked(countdownSeconds, onTick, onExpire)
	}
	return nil
}

// Reveal 鎖定回合並結算：彙總選擇、計算漲跌、更新每位玩家的資本、
// 追加價格歷史、回合數加一，最後回到 Idle 等待下一回合。
// 整段在鎖內完成，結算不會只套用到一半。
// 回合已在結算中（Locked）時是 no-op，防止倒數歸零與手動結算互相競爭。
func (r *Room) Reveal() (*Settlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRoomClosed
	}
	switch r.phase {
	case PhaseLocked:
		return nil, nil
	case PhaseIdle:
		return nil, ErrRoundNotOpen
	}

	r.phase = PhaseLocked
	r.stopCountdownLocked()
	r.countdown = 0

	// 沒有玩家時比例為 0，價格只受新聞影響
	buyFraction, sellFraction := r.ledger.Fractions()
	strategyDelta := ComputeStrategyDelta(buyFraction, sellFraction)
	totalDelta := TotalDelta(strategyDelta, r.news.Impact)

	prev := r.price
	r.price = ApplyToPrice(r.price, totalDelta)
	r.history = append(r.history, PricePoint{Round: r.round, Price: r.price})
	r.ledger.Settle(totalDelta)

	st := &Settlement{
		Round:         r.round,
		News:          r.news.Text,
		NewsImpact:    r.news.Impact,
		StrategyDelta: strategyDelta,
		TotalDelta:    totalDelta,
		PrevPrice:     prev,
		Price:         r.price,
		Players:       r.ledger.Snapshot(),
	}

	r.round++
	r.news = News{}
	r.phase = PhaseIdle
	return st, nil
}

// Reset 將遊戲整個重來：價格、回合數、歷史歸零，玩家全部移除
func (r *Room) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRoomClosed
	}
	r.stopCountdownLocked()
	r.phase = PhaseIdle
	r.round = 1
	r.countdown = 0
	r.news = News{}
	r.price = InitialPrice
	r.history = []PricePoint{{Round: 0, Price: InitialPrice}}
	r.ledger.Clear()
	return nil
}

// Close 標記房間結束，此後所有玩家操作都會被拒絕
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.stopCountdownLocked()
}

// Closed 回傳房間是否已結束
func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Snapshot 回傳房間目前狀態的複本
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := make([]PricePoint, len(r.history))
	copy(history, r.history)
	return Snapshot{
		Code:      r.Code,
		Phase:     r.phase,
		Round:     r.round,
		Countdown: r.countdown,
		News:      r.news.Text,
		Price:     r.price,
		History:   history,
		Players:   r.ledger.Snapshot(),
	}
}

// startCountdownLocked 啟動新的倒數，取代任何還在跑的倒數。
// 呼叫者必須持有 r.mu。
func (r *Room) startCountdownLocked(seconds int, onTick func(remaining int), onExpire func()) {
	r.stopCountdownLocked()
	r.countdown = seconds
	stop := make(chan struct{})
	r.stopTimer = stop

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				remaining, expired, live := r.tick(stop)
				if !live {
					return
				}
				if onTick != nil {
					onTick(remaining)
				}
				if expired {
					if onExpire != nil {
						onExpire()
					}
					return
				}
			}
		}
	}()
}

// tick 每秒遞減一次倒數。stop 用來確認這個計時器仍是目前有效的那一個，
// 被手動結算取代的舊計時器在這裡直接退場，不會再觸發任何事。
func (r *Room) tick(stop chan struct{}) (remaining int, expired, live bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopTimer != stop || r.phase != PhaseOpen || r.countdown <= 0 {
		return 0, false, false
	}
	r.countdown--
	if r.countdown == 0 {
		r.stopTimer = nil
		return 0, true, true
	}
	return r.countdown, false, true
}

// stopCountdownLocked 停掉正在跑的倒數。呼叫者必須持有 r.mu。
func (r *Room) stopCountdownLocked() {
	if r.stopTimer != nil {
		close(r.stopTimer)
		r.stopTimer = nil
	}
}
