package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"lootpool/core/events"
	"lootpool/core/types"
)

const (
	wsWriteTimeout   = 10 * time.Second
	streamBufferSize = 64
)

// eventHub relays committed events to websocket subscribers. Emit runs under
// the node lock, so a subscriber whose buffer is full is disconnected instead
// of waited for.
type eventHub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*streamSub
}

type streamSub struct {
	events  chan *types.Event
	filter  map[string]struct{}
	dropped chan struct{}
	once    sync.Once
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[int]*streamSub)}
}

// Emit implements events.Emitter.
func (h *eventHub) Emit(evt events.Event) {
	wire, ok := evt.(events.Wire)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.subs) == 0 {
		return
	}
	payload := wire.Event()
	for _, sub := range h.subs {
		if sub.filter != nil {
			if _, want := sub.filter[payload.Type]; !want {
				continue
			}
		}
		select {
		case sub.events <- payload:
		default:
			sub.once.Do(func() { close(sub.dropped) })
		}
	}
}

func (h *eventHub) subscribe(kinds []string) (*streamSub, func()) {
	sub := &streamSub{
		events:  make(chan *types.Event, streamBufferSize),
		dropped: make(chan struct{}),
	}
	if len(kinds) > 0 {
		sub.filter = make(map[string]struct{}, len(kinds))
		for _, t := range kinds {
			sub.filter[t] = struct{}{}
		}
	}
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = sub
	h.mu.Unlock()
	return sub, func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

func parseTypeFilter(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// handleEventStream upgrades to a websocket and streams committed events as
// JSON text frames. ?types=a,b restricts the stream to those event types.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns()})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	sub, cancel := s.hub.subscribe(parseTypeFilter(r.URL.Query().Get("types")))
	defer cancel()

	ctx := conn.CloseRead(r.Context())
	if err := streamEvents(ctx, conn, sub); err != nil {
		if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
			s.logger.Debug("event stream ended", slog.Any("error", err))
		}
	}
}

func streamEvents(ctx context.Context, conn *websocket.Conn, sub *streamSub) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.dropped:
			return conn.Close(websocket.StatusPolicyViolation, "subscriber too slow")
		case evt := <-sub.events:
			data, err := json.Marshal(evt)
			if err != nil {
				return err
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func (s *Server) originPatterns() []string {
	if len(s.cfg.CORSOrigins) == 0 {
		return []string{"*"}
	}
	patterns := make([]string, 0, len(s.cfg.CORSOrigins))
	for _, origin := range s.cfg.CORSOrigins {
		origin = strings.TrimSpace(origin)
		if i := strings.Index(origin, "://"); i >= 0 {
			origin = origin[i+3:]
		}
		if origin != "" {
			patterns = append(patterns, origin)
		}
	}
	return patterns
}

// handleExportFulfillments answers with the mirrored fulfillments as a parquet
// file. ?since= takes an RFC 3339 timestamp.
func (s *Server) handleExportFulfillments(w http.ResponseWriter, r *http.Request) {
	if s.mirror == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: errMirrorUnavailable.Error()})
		return
	}
	var since time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.fail(w, r, invalid("since must be an RFC 3339 timestamp"))
			return
		}
		since = parsed
	}
	var buf bytes.Buffer
	rows, err := s.mirror.ExportFulfillments(r.Context(), &buf, since)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.apache.parquet")
	w.Header().Set("Content-Disposition", `attachment; filename="fulfillments.parquet"`)
	w.Header().Set("X-Row-Count", strconv.Itoa(rows))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
