package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wearly/wearly/internal/model"
)

const (
	outboxSize     = 256
	publishTimeout = 2 * time.Second
)

// HeadProvider は提示中の衣服を返す。端末からのsync要求に使う。
type HeadProvider interface {
	Current(ctx context.Context, userID string) (*model.Garment, error)
}

// Broadcaster はユーザーの全端末にメッセージを送る。呼び出しはブロックしない。
type Broadcaster interface {
	Broadcast(userID string, msg Message)
}

// Hub はユーザーごとに接続中の端末を管理する。
// Busが設定されている場合、配信はBus経由で全インスタンスに届けられる。
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}

	heads   HeadProvider
	bus     Bus
	outbox  chan Envelope
	baseURL string
	logger  *slog.Logger
}

// NewHub はHubを生成する。busはnil可。
func NewHub(heads HeadProvider, bus Bus, baseURL string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		heads:   heads,
		bus:     bus,
		outbox:  make(chan Envelope, outboxSize),
		baseURL: baseURL,
		logger:  logger,
	}
}

// Run はBusへの送信とBusからの受信を開始し、ctxのキャンセルまでブロックする。
// Busがない場合はctxのキャンセルを待つだけ。終了時に全端末を切断する。
func (h *Hub) Run(ctx context.Context) error {
	defer h.closeAll()

	if h.bus == nil {
		<-ctx.Done()
		return nil
	}

	if err := h.bus.StartForwarder(ctx, h.deliver); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-h.outbox:
			pctx, cancel := context.WithTimeout(ctx, publishTimeout)
			if err := h.bus.Publish(pctx, env); err != nil {
				h.logger.Warn("failed to publish device message",
					slog.String("user_id", env.UserID),
					slog.String("error", err.Error()),
				)
			}
			cancel()
		}
	}
}

// Broadcast はユーザーの全端末にメッセージを送る。
func (h *Hub) Broadcast(userID string, msg Message) {
	env := Envelope{UserID: userID, Message: msg}
	if h.bus == nil {
		h.deliver(env)
		return
	}
	select {
	case h.outbox <- env:
	default:
		h.logger.Warn("device outbox full, dropping message",
			slog.String("user_id", userID),
			slog.String("type", msg.Type),
		)
	}
}

// NotifyHead は提示中の衣服の変化を端末に通知する。
func (h *Hub) NotifyHead(userID string, head *model.Garment) {
	h.Broadcast(userID, headMessage(h.baseURL, head))
}

// ClientCount はユーザーの接続中の端末数を返す。
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// deliver はこのインスタンスに接続中の端末へメッセージを送る。
// 送信バッファが満杯の端末には送らない。
func (h *Hub) deliver(env Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[env.UserID] {
		select {
		case c.send <- env.Message:
		default:
			h.logger.Warn("device send buffer full, dropping message",
				slog.String("user_id", env.UserID),
				slog.String("client_id", c.id),
			)
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	h.logger.Info("device connected",
		slog.String("user_id", c.userID),
		slog.String("client_id", c.id),
		slog.Int("user_clients", len(set)),
	)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	h.logger.Info("device disconnected",
		slog.String("user_id", c.userID),
		slog.String("client_id", c.id),
	)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, set := range h.clients {
		for c := range set {
			close(c.send)
		}
		delete(h.clients, userID)
	}
}
