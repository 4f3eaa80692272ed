package game

import "errors"

var (
	ErrRoundLocked   = errors.New("回合已鎖定，無法提交選擇")
	ErrRoundNotOpen  = errors.New("回合尚未開始")
	ErrUnknownRoom   = errors.New("房間不存在")
	ErrRoomClosed    = errors.New("房間已關閉")
	ErrNotHost       = errors.New("只有主持人可以執行此操作")
	ErrUnknownPlayer = errors.New("玩家不存在")
	ErrInvalidChoice = errors.New("無效的選擇")
)
