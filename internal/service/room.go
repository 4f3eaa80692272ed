package service

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"market_panic/internal/game"
	"market_panic/internal/models"
	"market_panic/internal/repository"
)

const (
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength   = 6
)

// RoomService 管理所有進行中的房間：建立、加入、投票、回合控制與結束。
// 進行中的遊戲狀態完全在記憶體內；資料庫只記錄房間的存在。
type RoomService struct {
	mu    sync.RWMutex
	rooms map[string]*game.Room

	roomRepo      repository.RoomRepository
	broadcaster   Broadcaster
	newsCountdown int
}

// NewRoomService 建立房間服務。
// broadcaster 傳 nil 時退回 NoopBroadcaster（單機模式）；
// roomRepo 傳 nil 時不寫任何持久化紀錄。
func NewRoomService(roomRepo repository.RoomRepository, broadcaster Broadcaster, newsCountdownSeconds int) *RoomService {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	if newsCountdownSeconds <= 0 {
		newsCountdownSeconds = game.NewsCountdownSeconds
	}
	return &RoomService{
		rooms:         make(map[string]*game.Room),
		roomRepo:      roomRepo,
		broadcaster:   broadcaster,
		newsCountdown: newsCountdownSeconds,
	}
}

// CreateRoom 建立新房間並回傳六碼房間代碼
func (s *RoomService) CreateRoom(hostID uint) (string, error) {
	s.mu.Lock()
	var code string
	for {
		code = newRoomCode()
		if _, exists := s.rooms[code]; !exists {
			break
		}
	}
	room := game.NewRoom(code, hostID)
	s.rooms[code] = room
	s.mu.Unlock()

	if s.roomRepo != nil {
		record := &models.Room{
			Code:   code,
			HostID: hostID,
			Status: models.RoomStatusActive,
		}
		if err := s.roomRepo.Create(record); err != nil {
			logrus.WithError(err).Warn("寫入房間紀錄失敗")
		}
	}

	logrus.WithFields(logrus.Fields{"room": code, "host": hostID}).Info("房間已建立")
	return code, nil
}

// GetRoom 以代碼取得進行中的房間
func (s *RoomService) GetRoom(code string) (*game.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[code]
	if !ok {
		return nil, game.ErrUnknownRoom
	}
	return room, nil
}

// ListRooms 查詢所有房間的持久化紀錄
func (s *RoomService) ListRooms() ([]models.Room, error) {
	if s.roomRepo == nil {
		return nil, nil
	}
	return s.roomRepo.FindAll()
}

// JoinAsPlayer 以 session token 加入房間。token 為空時由伺服器產生，
// 客戶端應將它快取起來，之後每次連線都帶同一個 token，
// 重新整理或斷線重連都會取回同一位玩家。
func (s *RoomService) JoinAsPlayer(code, token, name string) (game.Player, string, error) {
	room, err := s.GetRoom(code)
	if err != nil {
		return game.Player{}, "", err
	}

	if token == "" {
		token = uuid.NewString()
	}
	player, err := room.Join(token, name)
	if err != nil {
		return game.Player{}, "", err
	}

	s.broadcastPlayers(room)
	return player, token, nil
}

// ResolvePlayer 以 session token 查回玩家身份，重連同步時使用
func (s *RoomService) ResolvePlayer(code, token string) (game.Player, error) {
	room, err := s.GetRoom(code)
	if err != nil {
		return game.Player{}, err
	}
	player, ok := room.PlayerByToken(token)
	if !ok {
		return game.Player{}, game.ErrUnknownPlayer
	}
	return player, nil
}

// SubmitChoice 提交玩家本回合的選擇。
// 回合鎖定時靜默丟棄（不算錯誤），玩家端只會發現選擇沒有生效。
func (s *RoomService) SubmitChoice(code, playerID string, choice game.Choice) error {
	room, err := s.GetRoom(code)
	if err != nil {
		return err
	}

	if err := room.SubmitChoice(playerID, choice); err != nil {
		if errors.Is(err, game.ErrRoundLocked) {
			logrus.WithFields(logrus.Fields{"room": code, "player": playerID}).
				Debug("回合已鎖定，選擇被丟棄")
			return nil
		}
		return err
	}

	s.broadcastPlayers(room)
	return nil
}

// StartRound 開啟回合（只有主持人可以）。
// durationSeconds > 0 時啟動倒數，歸零自動結算。
func (s *RoomService) StartRound(code string, hostID uint, durationSeconds int) error {
	room, err := s.hostRoom(code, hostID)
	if err != nil {
		return err
	}

	round, err := room.StartRound(durationSeconds, s.tickFunc(code), s.expireFunc(code))
	if err != nil {
		return err
	}

	s.broadcaster.BroadcastToRoom(code, models.NewMessage(models.MsgRoundStarted, code,
		models.RoundStartedPayload{Round: round, DurationSeconds: durationSeconds}))
	return nil
}

// StageRandomNews 從新聞池抽一則新聞，並啟動自動結算倒數。
// 新聞的影響值在結算前不會廣播給玩家。
func (s *RoomService) StageRandomNews(code string, hostID uint) (game.News, error) {
	room, err := s.hostRoom(code, hostID)
	if err != nil {
		return game.News{}, err
	}

	news := game.DrawNews()
	if err := room.StageNews(news, s.newsCountdown, s.tickFunc(code), s.expireFunc(code)); err != nil {
		return game.News{}, err
	}

	s.broadcaster.BroadcastToRoom(code, models.NewMessage(models.MsgCountdownTick, code,
		models.CountdownTickPayload{Remaining: s.newsCountdown}))
	return news, nil
}

// Reveal 主持人手動結算本回合
func (s *RoomService) Reveal(code string, hostID uint) error {
	room, err := s.hostRoom(code, hostID)
	if err != nil {
		return err
	}
	return s.reveal(room)
}

// ResetGame 把遊戲整個重來：價格回到起點，玩家全部移除
func (s *RoomService) ResetGame(code string, hostID uint) error {
	room, err := s.hostRoom(code, hostID)
	if err != nil {
		return err
	}
	if err := room.Reset(); err != nil {
		return err
	}

	s.broadcaster.BroadcastToRoom(code, models.NewMessage(models.MsgRoomReset, code, nil))
	s.broadcastPlayers(room)
	return nil
}

// LeaveAsHost 主持人離開，房間終結：廣播 host_left，
// 此後所有玩家操作都會被拒絕。
func (s *RoomService) LeaveAsHost(code string, hostID uint) error {
	room, err := s.hostRoom(code, hostID)
	if err != nil {
		return err
	}

	room.Close()
	s.broadcaster.BroadcastToRoom(code, models.NewMessage(models.MsgHostLeft, code, nil))

	s.mu.Lock()
	delete(s.rooms, code)
	s.mu.Unlock()

	if s.roomRepo != nil {
		if record, err := s.roomRepo.FindByCode(code); err == nil {
			record.Status = models.RoomStatusClosed
			if err := s.roomRepo.Update(record); err != nil {
				logrus.WithError(err).Warn("更新房間紀錄失敗")
			}
		}
	}

	logrus.WithField("room", code).Info("主持人離開，房間已關閉")
	return nil
}

// HandleHostGone 主持人的連線斷了，視同主持人離開，房間終結。
// 主持人已經先走過 leave 流程時房間早已移除，這裡就安靜退場。
func (s *RoomService) HandleHostGone(code string) {
	room, err := s.GetRoom(code)
	if err != nil {
		return
	}
	if err := s.LeaveAsHost(code, room.HostID); err != nil {
		logrus.WithError(err).WithField("room", code).Warn("關閉房間失敗")
	}
}

// HandleClientMessage 處理玩家從 WebSocket 送來的訊息
func (s *RoomService) HandleClientMessage(client *Client, msg *models.Message) {
	switch msg.Type {
	case models.MsgPlayerChoice:
		if client.Role != game.RolePlayer {
			return
		}
		var payload models.PlayerChoicePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			logrus.WithError(err).Debug("選擇訊息解析失敗")
			return
		}
		choice, err := game.ParseChoice(payload.Choice)
		if err != nil {
			logrus.WithField("choice", payload.Choice).Debug("無效的選擇")
			return
		}
		if err := s.SubmitChoice(client.RoomCode, client.PlayerID, choice); err != nil {
			logrus.WithError(err).Debug("提交選擇失敗")
		}

	case models.MsgJoinAsPlayer:
		var payload models.JoinAsPlayerPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		if _, _, err := s.JoinAsPlayer(client.RoomCode, client.SessionToken, payload.Name); err != nil {
			logrus.WithError(err).Debug("玩家加入失敗")
		}

	default:
		// 未知或遲到的訊息直接丟棄
		logrus.WithField("type", msg.Type).Debug("忽略未知訊息類型")
	}
}

// hostRoom 取得房間並檢查操作者確實是這個房間的主持人
func (s *RoomService) hostRoom(code string, hostID uint) (*game.Room, error) {
	room, err := s.GetRoom(code)
	if err != nil {
		return nil, err
	}
	if room.HostID != hostID {
		return nil, game.ErrNotHost
	}
	return room, nil
}

// reveal 執行一次結算並廣播結果。
// Room.Reveal 回傳 nil 結果表示這次觸發撞上了另一次正在進行的結算，
// 什麼都不用做。
func (s *RoomService) reveal(room *game.Room) error {
	st, err := room.Reveal()
	if err != nil {
		return err
	}
	if st == nil {
		return nil
	}

	s.broadcaster.BroadcastToRoom(room.Code, models.NewMessage(models.MsgNewsUpdate, room.Code,
		models.NewsUpdatePayload{
			Text:          st.News,
			Round:         st.Round,
			Price:         st.Price,
			Change:        st.Price.Sub(st.PrevPrice),
			PercentChange: st.TotalDelta * 100,
		}))
	s.broadcaster.BroadcastToRoom(room.Code, models.NewUpdatePlayersMessage(room.Code, st.Players))

	logrus.WithFields(logrus.Fields{
		"room":  room.Code,
		"round": st.Round,
		"delta": st.TotalDelta,
		"price": st.Price,
	}).Info("回合已結算")
	return nil
}

// tickFunc 倒數每跳一秒就廣播一次剩餘秒數
func (s *RoomService) tickFunc(code string) func(int) {
	return func(remaining int) {
		s.broadcaster.BroadcastToRoom(code, models.NewMessage(models.MsgCountdownTick, code,
			models.CountdownTickPayload{Remaining: remaining}))
	}
}

// expireFunc 倒數歸零時自動結算。
// 主持人若在同一瞬間手動結算，回合已經不在 Open 狀態，這裡就安靜退場。
func (s *RoomService) expireFunc(code string) func() {
	return func() {
		room, err := s.GetRoom(code)
		if err != nil {
			return
		}
		if err := s.reveal(room); err != nil && !errors.Is(err, game.ErrRoundNotOpen) {
			logrus.WithError(err).Warn("自動結算失敗")
		}
	}
}

func (s *RoomService) broadcastPlayers(room *game.Room) {
	snapshot := room.Snapshot()
	s.broadcaster.BroadcastToRoom(room.Code, models.NewUpdatePlayersMessage(room.Code, snapshot.Players))
}

// newRoomCode 隨機產生六碼大寫英數字的房間代碼
func newRoomCode() string {
	buf := make([]byte, roomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i, b := range buf {
		buf[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return string(buf)
}
