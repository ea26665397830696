package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{OwnerID: "o"}); err == nil {
		t.Error("missing URL accepted")
	}
	if _, err := New(Config{URL: "ws://x"}); err == nil {
		t.Error("missing owner accepted")
	}
}

func TestListenerSubscribesAndDeliversEvents(t *testing.T) {
	gotAuth := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

		ctx := r.Context()
		var sub subscribeMessage
		if err := wsjson.Read(ctx, conn, &sub); err != nil {
			t.Errorf("read subscribe: %v", err)
			return
		}
		if sub.Type != "subscribe" || sub.OwnerID != "owner-1" {
			t.Errorf("subscribe = %+v", sub)
		}

		_ = wsjson.Write(ctx, conn, Event{Type: EventUpdate, TaskID: "task-9"})
		<-ctx.Done()
	}))
	defer srv.Close()

	events := make(chan Event, 1)
	l, err := New(Config{
		URL:      "ws" + strings.TrimPrefix(srv.URL, "http"),
		Token:    "secret",
		OwnerID:  "owner-1",
		OnChange: func(ev Event) { events <- ev },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer l.Stop()

	select {
	case auth := <-gotAuth:
		if auth != "Bearer secret" {
			t.Errorf("Authorization = %q", auth)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server never saw the dial")
	}

	select {
	case ev := <-events:
		if ev.Type != EventUpdate || ev.TaskID != "task-9" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event never delivered")
	}
}

func TestListenerStopIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
		<-r.Context().Done()
	}))
	defer srv.Close()

	l, err := New(Config{
		URL:     "ws" + strings.TrimPrefix(srv.URL, "http"),
		OwnerID: "owner-1",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	l.Stop()
	l.Stop() // second stop must not panic or block
}

func TestListenerDoubleStart(t *testing.T) {
	l, err := New(Config{URL: "ws://localhost:1", OwnerID: "o"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer l.Stop()

	if err := l.Start(context.Background()); err == nil {
		t.Error("second Start accepted")
	}
}
