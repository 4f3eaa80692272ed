package service

import (
	"market_panic/internal/repository"
)

type Services struct {
	User      *UserService
	Room      *RoomService
	WebSocket *WebSocketManager
}

func NewServices(repos *repository.Repositories, newsCountdownSeconds int) *Services {
	wsManager := NewWebSocketManager()

	userService := NewUserService(repos.User)
	roomService := NewRoomService(repos.Room, wsManager, newsCountdownSeconds)
	wsManager.SetMessageHandler(roomService.HandleClientMessage)
	wsManager.SetHostGoneHandler(roomService.HandleHostGone)

	return &Services{
		User:      userService,
		Room:      roomService,
		WebSocket: wsManager,
	}
}
