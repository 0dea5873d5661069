package cashws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/saeid-a/CoachLedgerBack/internal/models"
)

func receive(t *testing.T, client *Client) []byte {
	t.Helper()
	select {
	case payload := <-client.send:
		return payload
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return nil
}

func TestHubDeliversEventsToOwnerOnly(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	owner := NewClient(hub, nil, 7)
	other := NewClient(hub, nil, 8)
	hub.Register(owner)
	hub.Register(other)

	hub.Publish(models.NewCashEvent(models.CashEventMovementAdded, 7, map[string]any{"amount": 50}))

	var decoded struct {
		Type    string         `json:"type"`
		UserID  *int64         `json:"user_id"`
		Payload map[string]any `json:"payload"`
	}
	if err := json.Unmarshal(receive(t, owner), &decoded); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if decoded.Type != string(models.CashEventMovementAdded) || decoded.Payload["amount"] != float64(50) {
		t.Fatalf("unexpected event %+v", decoded)
	}
	if decoded.UserID != nil {
		t.Fatal("user id must not be part of the payload")
	}

	select {
	case payload := <-other.send:
		t.Fatalf("other user received %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitDone(t *testing.T, client *Client) {
	t.Helper()
	select {
	case <-client.done:
	case <-time.After(time.Second):
		t.Fatal("client was not released")
	}
}

func TestHubDropsSlowClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	slow := &Client{hub: hub, userID: 7, send: make(chan []byte, 1), done: make(chan struct{})}
	slow.send <- []byte("backlog")
	hub.Register(slow)

	hub.Publish(models.NewCashEvent(models.CashEventSessionOpened, 7, nil))

	waitDone(t, slow)
	if backlog := <-slow.send; string(backlog) != "backlog" {
		t.Fatalf("unexpected backlog %q", backlog)
	}
}

func TestHubUnregisterReleasesClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client := NewClient(hub, nil, 7)
	hub.Register(client)
	hub.Unregister(client)

	waitDone(t, client)
}

func TestReplyAfterDropDoesNotPanic(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client := NewClient(hub, nil, 7)
	hub.Register(client)
	for i := 0; i < 40; i++ {
		hub.Publish(models.NewCashEvent(models.CashEventMovementAdded, 7, nil))
	}
	waitDone(t, client)

	writeMessage(client, Message{Type: "pong"})
	writeMessage(client, Message{Type: "error", Content: "unsupported message type"})
}

func TestReplyAfterStopDoesNotPanic(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := NewClient(hub, nil, 7)
	hub.Register(client)
	hub.Stop()
	waitDone(t, client)

	writeMessage(client, Message{Type: "pong"})
}

func TestRegisterAfterStopReturns(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	hub.Stop()

	returned := make(chan struct{})
	go func() {
		hub.Register(NewClient(hub, nil, 7))
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Register blocked after Stop")
	}
}
