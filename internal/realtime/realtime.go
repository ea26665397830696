// Package realtime subscribes to the push channel that announces remote
// record changes for one owning identity. A notification never carries
// authoritative state by itself: the listener's callback is expected to
// trigger a reconcile pass against a fresh fetch, so stale pushes cannot
// overwrite newer local data.
package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"gridtask/internal/utils"
)

// EventType is the kind of remote change being announced.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is one push notification. Only the identifier travels on the
// channel; the current row state comes from the reconcile fetch.
type Event struct {
	Type   EventType `json:"type"`
	TaskID string    `json:"task_id"`
}

// subscribeMessage opens the per-owner channel after dialing.
type subscribeMessage struct {
	Type    string `json:"type"`
	OwnerID string `json:"owner_id"`
}

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Config holds listener settings.
type Config struct {
	URL      string // websocket endpoint, e.g. wss://host/v1/changes
	Token    string // bearer token for the owning identity
	OwnerID  string
	OnChange func(Event) // called for every notified change
}

// Listener maintains the subscription for one identity. Its lifecycle is
// tied to being signed in: Start on sign-in, Stop on sign-out or identity
// change, so channels are never leaked across accounts.
type Listener struct {
	cfg    Config
	log    *utils.Logger
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a listener. Start must be called to begin receiving events.
func New(cfg Config) (*Listener, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("realtime URL is required")
	}
	if cfg.OwnerID == "" {
		return nil, fmt.Errorf("owner identity is required")
	}
	return &Listener{cfg: cfg, log: utils.GetLogger()}, nil
}

// Start connects and subscribes. The connection is kept alive with
// reconnects and capped backoff until Stop or context cancellation.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return fmt.Errorf("listener already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(ctx)
	return nil
}

// Stop unsubscribes and waits for the read loop to exit. Safe to call more
// than once.
func (l *Listener) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel = nil
	l.done = nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (l *Listener) run(ctx context.Context) {
	defer close(l.done)

	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		err := l.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			l.log.Debug("realtime connection lost, reconnecting in %v: %v", backoff, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// listenOnce dials, subscribes and reads events until the connection drops
// or the context is cancelled.
func (l *Listener) listenOnce(ctx context.Context) error {
	header := http.Header{}
	if l.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+l.cfg.Token)
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, l.cfg.URL, &websocket.DialOptions{HTTPHeader: header})
	cancel()
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "unsubscribe") }()

	sub := subscribeMessage{Type: "subscribe", OwnerID: l.cfg.OwnerID}
	if err := wsjson.Write(ctx, conn, sub); err != nil {
		return err
	}

	l.log.Debug("realtime subscribed for owner %s", l.cfg.OwnerID)

	for {
		var ev Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			return err
		}
		if l.cfg.OnChange != nil {
			l.cfg.OnChange(ev)
		}
	}
}
