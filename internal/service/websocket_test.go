package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market_panic/internal/game"
	"market_panic/internal/models"
)

// wsTestServer 起一個會把連線交給 manager 的測試伺服器
func wsTestServer(t *testing.T, manager *WebSocketManager, roomCode string) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		manager.HandleConnection(conn, roomCode, game.RolePlayer, "p1", "tok")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcastDeliversToRoomClients(t *testing.T) {
	manager := NewWebSocketManager()
	srv := wsTestServer(t, manager, "ROOM01")
	conn := dial(t, srv)

	require.Eventually(t, func() bool {
		return manager.RoomClients("ROOM01") == 1
	}, time.Second, 10*time.Millisecond)

	manager.BroadcastToRoom("ROOM01", models.NewMessage(models.MsgRoundStarted, "ROOM01",
		models.RoundStartedPayload{Round: 1, DurationSeconds: 30}))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg models.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, models.MsgRoundStarted, msg.Type)
	assert.Equal(t, "ROOM01", msg.RoomCode)
}

func TestBroadcastScopedToRoom(t *testing.T) {
	manager := NewWebSocketManager()
	srv := wsTestServer(t, manager, "ROOM01")
	conn := dial(t, srv)

	require.Eventually(t, func() bool {
		return manager.RoomClients("ROOM01") == 1
	}, time.Second, 10*time.Millisecond)

	// 廣播到別的房間，這個連線不應該收到任何東西
	manager.BroadcastToRoom("OTHER1", models.NewMessage(models.MsgHostLeft, "OTHER1", nil))

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var msg models.Message
	err := conn.ReadJSON(&msg)
	assert.Error(t, err)
}

func TestDisconnectStopsDelivery(t *testing.T) {
	manager := NewWebSocketManager()
	srv := wsTestServer(t, manager, "ROOM01")
	conn := dial(t, srv)

	require.Eventually(t, func() bool {
		return manager.RoomClients("ROOM01") == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	// 斷線後客戶端被移除，之後的廣播不會再投遞給它
	require.Eventually(t, func() bool {
		return manager.RoomClients("ROOM01") == 0
	}, time.Second, 10*time.Millisecond)
	manager.BroadcastToRoom("ROOM01", models.NewMessage(models.MsgHostLeft, "ROOM01", nil))
}

func TestBroadcastRacingDisconnect(t *testing.T) {
	manager := NewWebSocketManager()

	const n = 64
	clients := make([]*Client, n)
	for i := range clients {
		clients[i] = manager.Register(nil, "RACE01", game.RolePlayer, "", "")
	}

	// 廣播和斷線清理同時跑，任何一邊都不能炸
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		msg := models.NewMessage(models.MsgUpdatePlayers, "RACE01", nil)
		for i := 0; i < 200; i++ {
			manager.BroadcastToRoom("RACE01", msg)
		}
	}()

	for _, client := range clients {
		manager.removeClient(client)
	}
	wg.Wait()

	assert.Equal(t, 0, manager.RoomClients("RACE01"))
}

func TestRemoveClientIdempotent(t *testing.T) {
	manager := NewWebSocketManager()
	client := manager.Register(nil, "ROOM01", game.RolePlayer, "p1", "tok")

	manager.removeClient(client)
	manager.removeClient(client) // 重複移除不會重複關閉通道

	// 移除之後廣播和單發都拿不到這個客戶端
	manager.BroadcastToRoom("ROOM01", models.NewMessage(models.MsgHostLeft, "ROOM01", nil))
	manager.Send(client, models.NewMessage(models.MsgHostLeft, "ROOM01", nil))

	_, open := <-client.SendChan
	assert.False(t, open)
}

func TestSnapshotQueuedBeforeLaterBroadcasts(t *testing.T) {
	manager := NewWebSocketManager()
	client := manager.Register(nil, "ROOM01", game.RolePlayer, "p1", "tok")

	// 註冊之後進來的廣播要排在先送出的狀態快照後面
	manager.Send(client, models.NewMessage(models.MsgRoomState, "ROOM01", nil))
	manager.BroadcastToRoom("ROOM01", models.NewMessage(models.MsgUpdatePlayers, "ROOM01", nil))

	assert.Equal(t, models.MsgRoomState, (<-client.SendChan).Type)
	assert.Equal(t, models.MsgUpdatePlayers, (<-client.SendChan).Type)
}

func TestHostDisconnectInvokesHostGone(t *testing.T) {
	manager := NewWebSocketManager()

	gone := make(chan string, 1)
	manager.SetHostGoneHandler(func(roomCode string) { gone <- roomCode })

	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		manager.HandleConnection(conn, "ROOM01", game.RoleHost, "", "")
	}))
	t.Cleanup(srv.Close)

	conn := dial(t, srv)
	conn.Close()

	select {
	case code := <-gone:
		assert.Equal(t, "ROOM01", code)
	case <-time.After(time.Second):
		t.Fatal("host gone handler was not invoked")
	}
}

func TestPlayerDisconnectDoesNotInvokeHostGone(t *testing.T) {
	manager := NewWebSocketManager()

	gone := make(chan string, 1)
	manager.SetHostGoneHandler(func(roomCode string) { gone <- roomCode })

	srv := wsTestServer(t, manager, "ROOM01")
	conn := dial(t, srv)
	conn.Close()

	require.Eventually(t, func() bool {
		return manager.RoomClients("ROOM01") == 0
	}, time.Second, 10*time.Millisecond)

	select {
	case <-gone:
		t.Fatal("player disconnect must not terminate the room")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestInboundMessageRouting(t *testing.T) {
	manager := NewWebSocketManager()

	received := make(chan *models.Message, 1)
	manager.SetMessageHandler(func(client *Client, msg *models.Message) {
		received <- msg
	})

	srv := wsTestServer(t, manager, "ROOM01")
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(models.NewMessage(models.MsgPlayerChoice, "SPOOFED",
		models.PlayerChoicePayload{Choice: "buy"})))

	select {
	case msg := <-received:
		assert.Equal(t, models.MsgPlayerChoice, msg.Type)
		// 來源資訊以連線為準，客戶端填的房間代碼會被覆蓋
		assert.Equal(t, "ROOM01", msg.RoomCode)
		assert.Equal(t, "p1", msg.PlayerID)
	case <-time.After(time.Second):
		t.Fatal("inbound message was not routed")
	}
}
