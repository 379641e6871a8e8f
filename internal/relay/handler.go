package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"translation-relay/internal/domain"
)

type Translator interface {
	Translate(ctx context.Context, text, from, to string) (string, error)
}

type Registry interface {
	Create(id, fromLang, toLang string) domain.Session
	IsActive(id string) bool
	End(id string)
	Duration(id string) time.Duration
}

type Auditor interface {
	Log(ctx context.Context, kind, sessionID string, details map[string]any)
}

// Conn is the subset of *websocket.Conn the protocol loop uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

const (
	// DefaultReadLimit bounds one client frame. It leaves room for a
	// 2000-character text of multi-byte runes plus the JSON envelope.
	DefaultReadLimit int64 = 16 << 10

	DefaultWriteTimeout = 10 * time.Second
)

// Handler upgrades HTTP requests to WebSocket connections and runs the
// protocol loop for each one. Registry, translator and audit sink are shared
// by all connections.
type Handler struct {
	sessions     Registry
	translator   Translator
	audit        Auditor
	logger       *slog.Logger
	upgrader     websocket.Upgrader
	defaultFrom  string
	defaultTo    string
	idleTimeout  time.Duration
	readLimit    int64
	writeTimeout time.Duration
	newConnID    func() string
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithDefaultPair sets the languages assumed when a frame omits from/to.
func WithDefaultPair(from, to string) Option {
	return func(h *Handler) {
		if from = strings.TrimSpace(from); from != "" {
			h.defaultFrom = from
		}
		if to = strings.TrimSpace(to); to != "" {
			h.defaultTo = to
		}
	}
}

// WithIdleTimeout closes connections that send nothing for d. Zero disables.
func WithIdleTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.idleTimeout = d
	}
}

// WithReadLimit sets the largest frame a client may send, in bytes. Larger
// frames close the connection.
func WithReadLimit(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.readLimit = n
		}
	}
}

// WithWriteTimeout bounds each frame write to a client.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithCheckOrigin overrides the upgrader's origin policy.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Handler) {
		h.upgrader.CheckOrigin = fn
	}
}

func NewHandler(sessions Registry, translator Translator, audit Auditor, opts ...Option) (*Handler, error) {
	if sessions == nil {
		return nil, errors.New("relay: session registry must not be nil")
	}
	if translator == nil {
		return nil, errors.New("relay: translator must not be nil")
	}
	if audit == nil {
		return nil, errors.New("relay: audit sink must not be nil")
	}
	h := &Handler{
		sessions:     sessions,
		translator:   translator,
		audit:        audit,
		logger:       slog.Default(),
		defaultFrom:  "en",
		defaultTo:    "es",
		readLimit:    DefaultReadLimit,
		writeTimeout: DefaultWriteTimeout,
		newConnID:    uuid.NewString,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "err", err)
		return
	}
	// In-flight translations finish even if the client goes away.
	h.Serve(context.WithoutCancel(r.Context()), ws)
}

// Serve runs the protocol loop on c until the peer disconnects or a frame
// cannot be processed, then closes c.
func (h *Handler) Serve(ctx context.Context, c Conn) {
	cs := &connection{
		h:      h,
		conn:   c,
		logger: h.logger.With("conn_id", h.newConnID()),
		state:  StateConnected,
	}
	c.SetReadLimit(h.readLimit)
	cs.run(ctx)
}

type connection struct {
	h         *Handler
	conn      Conn
	logger    *slog.Logger
	state     State
	sessionID string
}

func (c *connection) run(ctx context.Context) {
	defer c.teardown(ctx)
	c.logger.Info("websocket connected")

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("websocket error", "panic", r)
		}
	}()

	for {
		in, known, err := c.receive()
		if err != nil {
			if isDisconnect(err) {
				c.logger.Info("websocket disconnected")
			} else {
				c.logger.Error("websocket error", "err", err)
			}
			return
		}
		if !known {
			c.logger.Debug("ignoring frame", "type", in.Type)
			continue
		}
		out, ok := c.dispatch(ctx, in)
		if !ok {
			continue
		}
		if err := c.write(out); err != nil {
			c.logger.Error("websocket write failed", "frame", out.Type, "err", err)
			return
		}
	}
}

func (c *connection) receive() (Inbound, bool, error) {
	if c.h.idleTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.h.idleTimeout)); err != nil {
			return Inbound{}, false, err
		}
	}
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return Inbound{}, false, err
	}
	return decodeFrame(data)
}

func (c *connection) write(out Outbound) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.h.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(out)
}

// dispatch handles one frame and reports the frame to send back, if any.
func (c *connection) dispatch(ctx context.Context, in Inbound) (Outbound, bool) {
	switch in.Type {
	case TypeStartSession:
		return c.startSession(ctx, in), true
	case TypeTranslate:
		return c.translate(ctx, in)
	case TypeEndSession:
		return c.endSession(ctx, in), true
	default:
		c.logger.Debug("ignoring frame", "type", in.Type)
		return Outbound{}, false
	}
}

func (c *connection) startSession(ctx context.Context, in Inbound) Outbound {
	id := in.sessionIDOr(UnknownSessionID)
	from := orDefault(in.From, c.h.defaultFrom)
	to := orDefault(in.To, c.h.defaultTo)

	c.h.sessions.Create(id, from, to)
	c.h.audit.Log(ctx, domain.AuditSessionStart, id, map[string]any{"from": from, "to": to})
	c.sessionID = id
	c.state = StateInSession

	c.logger.Info("session started", "session", domain.ShortID(id), "from", from, "to", to)
	return sessionStarted(id)
}

func (c *connection) translate(ctx context.Context, in Inbound) (Outbound, bool) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return Outbound{}, false
	}
	from := orDefault(in.From, c.h.defaultFrom)
	to := orDefault(in.To, c.h.defaultTo)
	sid := in.sessionIDOr(c.sessionID)
	if sid == "" && !in.hasSessionID {
		sid = UnknownSessionID
	}

	c.logger.Debug("translating", "session", domain.ShortID(sid), "from", from, "to", to, "chars", len(text))

	out, err := c.h.translator.Translate(ctx, text, from, to)
	if err != nil || out == "" {
		c.logger.Warn("translation failed", "session", domain.ShortID(sid), "from", from, "to", to)
		return translationFailed(), true
	}
	return translationResult(text, out), true
}

func (c *connection) endSession(ctx context.Context, in Inbound) Outbound {
	sid := in.sessionIDOr(c.sessionID)
	if sid != "" {
		c.finish(ctx, sid, nil)
	}
	if sid == c.sessionID {
		c.sessionID = ""
		c.state = StateConnected
	}
	return sessionEnded()
}

// finish ends sid in the registry and records the audit event.
func (c *connection) finish(ctx context.Context, sid string, extra map[string]any) {
	d := c.h.sessions.Duration(sid)
	c.h.sessions.End(sid)

	details := map[string]any{"duration_seconds": int(d.Seconds())}
	for k, v := range extra {
		details[k] = v
	}
	c.h.audit.Log(ctx, domain.AuditSessionEnd, sid, details)
}

func (c *connection) teardown(ctx context.Context) {
	// A session ended elsewhere (another connection reusing the id) is not
	// audited a second time.
	if c.sessionID != "" && c.h.sessions.IsActive(c.sessionID) {
		c.finish(ctx, c.sessionID, map[string]any{"reason": "disconnect"})
	}
	c.sessionID = ""
	c.state = StateClosed
	_ = c.conn.Close()
}

func isDisconnect(err error) bool {
	var ce *websocket.CloseError
	return errors.As(err, &ce)
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
