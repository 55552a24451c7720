package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"tinyhunt/internal/hud"
	"tinyhunt/internal/match"
	"tinyhunt/internal/viewmodel"
	"tinyhunt/views/components"
	"tinyhunt/views/pages"
)

const (
	keepAliveInterval = 25 * time.Second
	pageTitle         = "TinyHunt"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientMessage is what a websocket client may send. Only hits are
// understood.
type clientMessage struct {
	Type   string `json:"type"`
	Target string `json:"target"`
}

func viewerID(r *http.Request) match.ParticipantID {
	return match.ParticipantID(strings.TrimSpace(r.URL.Query().Get("id")))
}

func (h *MatchHandler) home(w http.ResponseWriter, r *http.Request) {
	id := viewerID(r)
	var st match.Status
	if !h.do(r, func() { st = h.manager.Status() }) {
		h.unavailable(w)
		return
	}
	streamURL := "/stream"
	if id != "" {
		streamURL += "?id=" + string(id)
	}
	render(w, r, pages.HomePage(viewmodel.HomePage{
		Title:     pageTitle,
		HUD:       buildHUD(st),
		Lines:     toLines(h.sink.Recent(), id),
		StreamURL: streamURL,
	}))
}

func (h *MatchHandler) hudFragment(w http.ResponseWriter, r *http.Request) {
	var st match.Status
	if !h.do(r, func() { st = h.manager.Status() }) {
		h.unavailable(w)
		return
	}
	render(w, r, components.HUDFragment(buildHUD(st)))
}

// stream pushes HUD and announcement fragments as server-sent events.
func (h *MatchHandler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id := viewerID(r)
	sub := h.sink.Subscribe()
	defer h.sink.Unsubscribe(sub)

	sendStatus := func() bool {
		var st match.Status
		if !h.do(r, func() { st = h.manager.Status() }) {
			return false
		}
		writeSSE(w, "hud", renderToString(r, components.HUDFragment(buildHUD(st))))
		return true
	}
	sendLines := func() {
		writeSSE(w, "lines", renderToString(r, components.LinesFragment(toLines(h.sink.Recent(), id))))
	}

	if !sendStatus() {
		return
	}
	sendLines()
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-sub:
			if !open {
				return
			}
			switch event.Kind {
			case hud.EventLine:
				if event.Line == nil || !event.Line.For(id) {
					continue
				}
				sendLines()
			case hud.EventSnapshot:
				if event.Snapshot == nil || !addressed(id, event.Participants) {
					continue
				}
				data := withSnapshot(viewmodel.HUD{ScoreboardTitle: hud.ScoreboardTitle}, *event.Snapshot)
				writeSSE(w, "hud", renderToString(r, components.HUDFragment(data)))
			case hud.EventReset:
				if !sendStatus() {
					return
				}
			}
			flusher.Flush()
		case <-keepAlive.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		}
	}
}

// socket streams raw sink events as JSON. A connection opened with an id
// may also report hits as that participant.
func (h *MatchHandler) socket(w http.ResponseWriter, r *http.Request) {
	id := viewerID(r)
	if id != "" {
		if _, ok := h.dir.Get(id); !ok {
			http.Error(w, "unknown participant", http.StatusNotFound)
			return
		}
	}

	sub := h.sink.Subscribe()
	defer h.sink.Unsubscribe(sub)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("participant", string(id)).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go h.readCommands(ctx, cancel, conn, id)

	send := func(event hud.Event) bool {
		data, err := json.Marshal(event)
		if err != nil {
			h.log.Error().Err(err).Msg("encode event")
			return true
		}
		return conn.WriteMessage(websocket.TextMessage, data) == nil
	}

	if snap, participants, ok := h.sink.Latest(); ok && addressed(id, participants) {
		if !send(hud.Event{Kind: hud.EventSnapshot, Snapshot: &snap, Participants: participants}) {
			return
		}
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-sub:
			if !open {
				return
			}
			if !visible(event, id) {
				continue
			}
			if !send(event) {
				return
			}
		case <-keepAlive.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}

func (h *MatchHandler) readCommands(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, id match.ParticipantID) {
	defer cancel()
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if id == "" {
			continue
		}
		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.log.Debug().Err(err).Str("participant", string(id)).Msg("discarding malformed message")
			continue
		}
		if msg.Type != "hit" || msg.Target == "" {
			continue
		}
		if !h.limits.allow(string(id)) {
			continue
		}
		target := match.ParticipantID(msg.Target)
		if err := h.loop.Do(ctx, func() { h.manager.HandleHit(id, target) }); err != nil {
			return
		}
	}
}

func visible(event hud.Event, id match.ParticipantID) bool {
	switch event.Kind {
	case hud.EventLine:
		return event.Line != nil && event.Line.For(id)
	case hud.EventSnapshot:
		return addressed(id, event.Participants)
	}
	return true
}

// addressed reports whether a snapshot for participants is shown to id.
// Spectators see every snapshot.
func addressed(id match.ParticipantID, participants []match.ParticipantID) bool {
	if id == "" {
		return true
	}
	for _, p := range participants {
		if p == id {
			return true
		}
	}
	return false
}
