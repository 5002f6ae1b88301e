package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ndviet/market-gate/internal/core/domain"
)

const (
	feedReadLimit    = 1 << 20
	feedPongWait     = 60 * time.Second
	feedPingInterval = 25 * time.Second
)

// WSFeed subscribes to the ledger gateway's websocket event stream. One
// Subscribe call maps to one connection; the returned channel closes when
// the connection drops, and the router resubscribes.
type WSFeed struct {
	url string
	log *zap.Logger
}

func NewWSFeed(url string, log *zap.Logger) *WSFeed {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSFeed{url: url, log: log}
}

type subscribeMessage struct {
	Op     string   `json:"op"`
	Events []string `json:"events"`
}

type wireEvent struct {
	Item    string            `json:"item"`
	Kind    string            `json:"kind"`
	Payload map[string]string `json:"payload"`
}

type wireBatch struct {
	Events []wireEvent `json:"events"`
}

func (f *WSFeed) Subscribe(ctx context.Context, kinds []domain.EventKind) (<-chan []domain.LedgerEvent, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial ledger feed: %w", err)
	}

	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	if err := conn.WriteJSON(subscribeMessage{Op: "subscribe", Events: names}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe ledger feed: %w", err)
	}

	conn.SetReadLimit(feedReadLimit)
	conn.SetReadDeadline(time.Now().Add(feedPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})

	out := make(chan []domain.LedgerEvent)
	done := make(chan struct{})

	go f.keepAlive(ctx, conn, done)
	go f.readLoop(conn, out, done)

	return out, nil
}

func (f *WSFeed) readLoop(conn *websocket.Conn, out chan<- []domain.LedgerEvent, done chan<- struct{}) {
	defer close(done)
	defer close(out)
	defer conn.Close()

	for {
		var batch wireBatch
		if err := conn.ReadJSON(&batch); err != nil {
			f.log.Warn("ledger feed read failed", zap.Error(err))
			return
		}
		events := make([]domain.LedgerEvent, 0, len(batch.Events))
		for _, ev := range batch.Events {
			events = append(events, domain.LedgerEvent{
				ItemID:  ev.Item,
				Kind:    domain.EventKind(ev.Kind),
				Payload: ev.Payload,
			})
		}
		if len(events) > 0 {
			out <- events
		}
	}
}

// keepAlive pings the peer and tears the connection down on ctx cancel,
// which unblocks the read loop.
func (f *WSFeed) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(feedPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			conn.Close()
			return
		case <-ticker.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				conn.Close()
				return
			}
		}
	}
}
