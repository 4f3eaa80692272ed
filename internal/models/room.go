package models

import (
	"gorm.io/gorm"
)

// Room 是房間的持久化紀錄。
// 遊戲進行中的狀態（回合、價格、玩家帳本）都在記憶體內，
// 資料庫只記錄房間的存在與它的生命週期。
type Room struct {
	gorm.Model
	Code   string     `gorm:"uniqueIndex;not null" json:"code"` // 六碼房間代碼，玩家輸入用
	HostID uint       `gorm:"not null" json:"host_id"`          // 建立房間的主持人
	Status RoomStatus `gorm:"not null" json:"status"`
}

// RoomStatus 定義房間狀態的類型
type RoomStatus string

const (
	RoomStatusActive RoomStatus = "active" // 遊戲進行中
	RoomStatusClosed RoomStatus = "closed" // 主持人已離開，房間失效
)
