package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sakif/runclub/internal/auth"
)

func newTestHub(t *testing.T, userID string) (*Hub, *websocket.Conn) {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(testWriter{t}, nil)))

	// Inject the user the way OptionalAuth would.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID != "" {
			r = r.WithContext(auth.ContextWithUserID(r.Context(), userID))
		}
		hub.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	sock, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing test hub: %v", err)
	}
	t.Cleanup(func() { sock.Close() })

	return hub, sock
}

// testWriter routes hub logs through t.Logf.
type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

func subscribe(t *testing.T, sock *websocket.Conn, topic string) {
	t.Helper()
	if err := sock.WriteJSON(subscribeMessage{Action: "subscribe", Topic: topic}); err != nil {
		t.Fatalf("subscribing to %s: %v", topic, err)
	}
	// The read loop is asynchronous; give it a moment to register the
	// subscription before the test publishes.
	time.Sleep(50 * time.Millisecond)
}

func TestPublish_ReachesSubscriberInOrder(t *testing.T) {
	hub, sock := newTestHub(t, "")
	subscribe(t, sock, "orders")

	hub.Publish(Event{Topic: "orders", Type: "created", Payload: "first"})
	hub.Publish(Event{Topic: "orders", Type: "created", Payload: "second"})
	hub.Publish(Event{Topic: "orders", Type: "removed", Payload: "third"})

	for _, want := range []string{"first", "second", "third"} {
		var got Event
		sock.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := sock.ReadJSON(&got); err != nil {
			t.Fatalf("reading event %q: %v", want, err)
		}
		if got.Payload != want {
			t.Errorf("event payload = %v, want %q", got.Payload, want)
		}
	}
}

func TestPublish_SkipsOtherTopics(t *testing.T) {
	hub, sock := newTestHub(t, "")
	subscribe(t, sock, "orders")

	hub.Publish(Event{Topic: "photos", Type: "created", Payload: "not for us"})
	hub.Publish(Event{Topic: "orders", Type: "created", Payload: "for us"})

	var got Event
	sock.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := sock.ReadJSON(&got); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	// The first thing delivered must be the orders event — the photos
	// event never entered our queue.
	if got.Topic != "orders" || got.Payload != "for us" {
		t.Errorf("got event %+v, want the orders event", got)
	}
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	hub, sock := newTestHub(t, "")
	subscribe(t, sock, "orders")

	if err := sock.WriteJSON(subscribeMessage{Action: "unsubscribe", Topic: "orders"}); err != nil {
		t.Fatalf("unsubscribing: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	hub.Publish(Event{Topic: "orders", Type: "created", Payload: "after unsubscribe"})

	sock.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var got Event
	if err := sock.ReadJSON(&got); err == nil {
		t.Errorf("received event %+v after unsubscribing", got)
	}
}

func TestDisconnectHook_RunsForSignedInMember(t *testing.T) {
	hub, sock := newTestHub(t, "fb-1")

	var mu sync.Mutex
	var gotUserID string
	done := make(chan struct{})
	hub.OnDisconnect(func(ctx context.Context, userID string) {
		mu.Lock()
		gotUserID = userID
		mu.Unlock()
		close(done)
	})

	sock.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect hook never ran")
	}
	mu.Lock()
	defer mu.Unlock()
	if gotUserID != "fb-1" {
		t.Errorf("hook userID = %q, want %q", gotUserID, "fb-1")
	}
}
