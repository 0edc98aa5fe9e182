package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomrelay/internal/config"
	"github.com/vovakirdan/roomrelay/internal/core"
	"github.com/vovakirdan/roomrelay/internal/proto"
)

// WSHandler upgrades HTTP connections and hands them to the relay.
type WSHandler struct {
	relay *core.Relay
	cfg   config.RelayConfig
	log   *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(relay *core.Relay, cfg config.RelayConfig, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{relay: relay, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.cfg.AllowedOrigins,
		InsecureSkipVerify: len(h.cfg.AllowedOrigins) == 0,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	t := newWSTransport(conn, h.cfg.WriteTimeout, newRateLimiter(h.cfg.MessagesPerMinute), h.log)
	if err := h.relay.Serve(r.Context(), t); err != nil && !isPeerClose(err) {
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("ws connection closed with error")
	}
}

func isPeerClose(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway, websocket.StatusNoStatusRcvd:
		return true
	}
	return false
}

// wsTransport adapts a websocket connection to core.Transport.
type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	limiter      *rateLimiter
	stop         chan struct{}
	stopOnce     sync.Once
	log          *zerolog.Logger
}

func newWSTransport(conn *websocket.Conn, writeTimeout time.Duration, limiter *rateLimiter, logger *zerolog.Logger) *wsTransport {
	t := &wsTransport{
		conn:         conn,
		writeTimeout: writeTimeout,
		limiter:      limiter,
		stop:         make(chan struct{}),
		log:          logger,
	}
	limiter.startReset(t.stop)
	return t
}

func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	for {
		_, data, err := t.conn.Read(ctx)
		if err != nil {
			return nil, err
		}
		if t.limiter.allow() {
			return data, nil
		}
		t.log.Debug().Msg("rate limit exceeded, frame dropped")
		if err := wsjson.Write(ctx, t.conn, proto.ErrorEvent{
			Type:  proto.TypeError,
			Error: proto.Error{Code: "rate_limited", Msg: "too many messages"},
		}); err != nil {
			return nil, err
		}
	}
}

func (t *wsTransport) Write(ctx context.Context, payload []byte) error {
	if t.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.writeTimeout)
		defer cancel()
	}
	return t.conn.Write(ctx, websocket.MessageText, payload)
}

func (t *wsTransport) Close(cause error) error {
	t.stopOnce.Do(func() { close(t.stop) })

	switch {
	case cause == nil:
		return t.conn.Close(websocket.StatusNormalClosure, "closing")
	case errors.Is(cause, core.ErrHandshake):
		return t.conn.Close(websocket.StatusPolicyViolation, "handshake failed")
	case websocket.CloseStatus(cause) != -1 || errors.Is(cause, io.EOF):
		return t.conn.CloseNow()
	default:
		return t.conn.Close(websocket.StatusInternalError, "internal error")
	}
}
