package http

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tournament-quiz-service/internal/app"
)

func dialWS(t *testing.T, serverURL, userID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws?userId=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) outboundMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg outboundMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestServeWSStreamsUserEvents(t *testing.T) {
	srv, bus := newTestServer(t)
	conn := dialWS(t, srv.URL, "u1")

	if msg := readMessage(t, conn); msg.Type != "connected" {
		t.Fatalf("expected connected handshake, got %+v", msg)
	}

	bus.Publish(app.Event{Kind: app.EventQuizStarted, UserID: "u1", SessionID: "s1"})
	msg := readMessage(t, conn)
	if msg.Type != string(app.EventQuizStarted) || msg.SessionID != "s1" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	// events for other users never reach this connection
	bus.Publish(app.Event{Kind: app.EventQuizCompleted, UserID: "someone-else", SessionID: "s2"})
	bus.Publish(app.Event{Kind: app.EventWalletUpdated, UserID: "u1", SessionID: "s1"})
	msg = readMessage(t, conn)
	if msg.Type != string(app.EventWalletUpdated) {
		t.Fatalf("expected wallet event next, got %+v", msg)
	}
}

func TestServeWSRequiresUserID(t *testing.T) {
	srv, _ := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("expected handshake failure without userId")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %+v", resp)
	}
}

func TestServeWSDeliversEngineLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dialWS(t, srv.URL, "u1")
	if msg := readMessage(t, conn); msg.Type != "connected" {
		t.Fatalf("expected connected handshake, got %+v", msg)
	}

	_, started := postJSON(t, srv.URL+"/api/quiz/t1/start", map[string]string{"userId": "u1"})
	sessionID := started["sessionId"].(string)

	msg := readMessage(t, conn)
	if msg.Type != string(app.EventQuizStarted) || msg.SessionID != sessionID {
		t.Fatalf("expected quiz_started push, got %+v", msg)
	}

	for i := 0; i < 3; i++ {
		if resp, body := postJSON(t, srv.URL+"/api/quiz/"+sessionID+"/answer", map[string]any{"questionIndex": i, "answer": 1}); resp.StatusCode != http.StatusOK {
			t.Fatalf("answer %d: %d %v", i, resp.StatusCode, body)
		}
	}

	// two advance pushes, then completion; a prize payout adds a wallet event
	kinds := map[string]int{}
	for i := 0; i < 4; i++ {
		msg := readMessage(t, conn)
		kinds[msg.Type]++
	}
	if kinds[string(app.EventQuestionAdvanced)] != 2 {
		t.Fatalf("expected 2 advance events, got %v", kinds)
	}
	if kinds[string(app.EventQuizCompleted)] != 1 || kinds[string(app.EventWalletUpdated)] != 1 {
		t.Fatalf("expected completion and wallet events, got %v", kinds)
	}
}
