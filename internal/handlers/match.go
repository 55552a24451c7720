package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"tinyhunt/internal/arena"
	"tinyhunt/internal/config"
	"tinyhunt/internal/hud"
	"tinyhunt/internal/match"
	"tinyhunt/internal/presence"
	"tinyhunt/internal/viewmodel"
	"tinyhunt/pkg/realtime"
)

// Deps are the collaborators a MatchHandler drives. The manager is only
// touched on the loop goroutine.
type Deps struct {
	Loop         *realtime.Loop
	Manager      *match.Manager
	Directory    *presence.Directory
	Sink         *hud.Sink
	Store        *arena.Store
	Provider     *arena.Provider
	LoadSettings func() (config.Settings, error)
	Logger       zerolog.Logger
}

type MatchHandler struct {
	loop     *realtime.Loop
	manager  *match.Manager
	dir      *presence.Directory
	sink     *hud.Sink
	store    *arena.Store
	provider *arena.Provider
	settings func() (config.Settings, error)
	limits   *limiters
	log      zerolog.Logger
}

func NewMatchHandler(deps Deps) *MatchHandler {
	return &MatchHandler{
		loop:     deps.Loop,
		manager:  deps.Manager,
		dir:      deps.Directory,
		sink:     deps.Sink,
		store:    deps.Store,
		provider: deps.Provider,
		settings: deps.LoadSettings,
		limits:   newLimiters(rate.Limit(1), 3),
		log:      deps.Logger.With().Str("component", "http").Logger(),
	}
}

func (h *MatchHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.home)
	r.Get("/hud", h.hudFragment)
	r.Get("/stream", h.stream)
	r.Get("/ws", h.socket)
	r.Get("/status", h.status)

	r.Route("/participants", func(r chi.Router) {
		r.Get("/", h.listParticipants)
		r.Post("/", h.connect)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.participant)
			r.Delete("/", h.disconnect)
			r.With(h.rateLimited).Post("/join", h.join)
			r.With(h.rateLimited).Post("/leave", h.leave)
		})
	})
	r.Post("/hits", h.hit)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/start", h.forceStart)
		r.Post("/stop", h.stop)
		r.Post("/reload", h.reload)
		r.Get("/arenas", h.listArenas)
		r.Post("/arenas", h.createArena)
		r.Post("/lobby/pos/{corner}", h.setLobbyCorner)
		r.Post("/arenas/{name}/pos/{corner}", h.setArenaCorner)
		r.Post("/arenas/{name}/spawns", h.addSpawn)
		r.Post("/arenas/{name}/activate", h.activateArena)
	})
}

// do runs fn on the tick loop, where the manager lives.
func (h *MatchHandler) do(r *http.Request, fn func()) bool {
	return h.loop.Do(r.Context(), fn) == nil
}

func (h *MatchHandler) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limits.allow(chi.URLParam(r, "id")) {
			h.message(w, http.StatusTooManyRequests, "rate-limited", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *MatchHandler) connect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	id, err := h.dir.Connect(r.FormValue("name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.log.Info().Str("participant", string(id)).Msg("participant connected")
	writeJSON(w, http.StatusCreated, h.participantView(id, false, match.Role(0), false))
}

func (h *MatchHandler) disconnect(w http.ResponseWriter, r *http.Request) {
	id := match.ParticipantID(chi.URLParam(r, "id"))
	var found bool
	ok := h.do(r, func() {
		h.manager.HandleDisconnect(id)
		found = h.dir.Disconnect(id)
	})
	if !ok {
		h.unavailable(w)
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}
	h.limits.forget(string(id))
	h.log.Info().Str("participant", string(id)).Msg("participant disconnected")
	w.WriteHeader(http.StatusNoContent)
}

func (h *MatchHandler) listParticipants(w http.ResponseWriter, r *http.Request) {
	var roles map[match.ParticipantID]match.Role
	var queued map[match.ParticipantID]bool
	ok := h.do(r, func() {
		roles = make(map[match.ParticipantID]match.Role)
		queued = make(map[match.ParticipantID]bool)
		st := h.manager.Status()
		for id, role := range st.Roles {
			roles[id] = role
		}
		for _, id := range st.Queue {
			queued[id] = true
		}
	})
	if !ok {
		h.unavailable(w)
		return
	}
	avatars := h.dir.List()
	out := make([]viewmodel.Participant, 0, len(avatars))
	for _, a := range avatars {
		role, active := roles[a.ID]
		out = append(out, toParticipantView(a, queued[a.ID], role, active))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *MatchHandler) participant(w http.ResponseWriter, r *http.Request) {
	id := match.ParticipantID(chi.URLParam(r, "id"))
	var (
		queued bool
		role   match.Role
		active bool
	)
	ok := h.do(r, func() {
		queued = h.manager.IsQueued(id)
		role, active = h.manager.Role(id)
	})
	if !ok {
		h.unavailable(w)
		return
	}
	a, found := h.dir.Get(id)
	if !found {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantView(a, queued, role, active))
}

func (h *MatchHandler) join(w http.ResponseWriter, r *http.Request) {
	id := match.ParticipantID(chi.URLParam(r, "id"))
	var (
		pos int
		err error
	)
	if !h.do(r, func() { pos, err = h.manager.Enqueue(id) }) {
		h.unavailable(w)
		return
	}
	if err != nil {
		h.reject(w, err)
		return
	}
	h.message(w, http.StatusOK, "joined-queue", map[string]string{"position": strconv.Itoa(pos)})
}

func (h *MatchHandler) leave(w http.ResponseWriter, r *http.Request) {
	id := match.ParticipantID(chi.URLParam(r, "id"))
	var err error
	if !h.do(r, func() { err = h.manager.LeaveQueue(id) }) {
		h.unavailable(w)
		return
	}
	if err != nil {
		h.reject(w, err)
		return
	}
	h.message(w, http.StatusOK, "left-queue", nil)
}

// hit reports that attacker struck target. The attacker must be connected;
// hits that do not start a conversion are accepted and ignored.
func (h *MatchHandler) hit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	attacker := match.ParticipantID(strings.TrimSpace(r.FormValue("attacker")))
	target := match.ParticipantID(strings.TrimSpace(r.FormValue("target")))
	if attacker == "" || target == "" {
		http.Error(w, "attacker and target required", http.StatusBadRequest)
		return
	}
	if _, ok := h.dir.Get(attacker); !ok {
		h.reject(w, eris.Wrapf(match.ErrNotConnected, "attacker %s", attacker))
		return
	}
	if !h.limits.allow(string(attacker)) {
		h.message(w, http.StatusTooManyRequests, "rate-limited", nil)
		return
	}
	var converted bool
	if !h.do(r, func() { converted = h.manager.HandleHit(attacker, target) }) {
		h.unavailable(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"converted": converted})
}

func (h *MatchHandler) status(w http.ResponseWriter, r *http.Request) {
	var st match.Status
	if !h.do(r, func() { st = h.manager.Status() }) {
		h.unavailable(w)
		return
	}
	writeJSON(w, http.StatusOK, toStatusView(st))
}

func (h *MatchHandler) participantView(id match.ParticipantID, queued bool, role match.Role, active bool) viewmodel.Participant {
	a, _ := h.dir.Get(id)
	return toParticipantView(a, queued, role, active)
}

// reject reports a refused command with the catalog text for err.
func (h *MatchHandler) reject(w http.ResponseWriter, err error) {
	key := match.MessageKey(err)
	switch {
	case key != "":
		h.message(w, http.StatusConflict, key, nil)
	case eris.Is(err, match.ErrNotConnected):
		writeJSON(w, http.StatusNotFound, viewmodel.Message{Key: "not-connected", Message: err.Error(), Error: true})
	default:
		h.log.Error().Err(err).Msg("command failed")
		writeJSON(w, http.StatusInternalServerError, viewmodel.Message{Key: "internal", Message: err.Error(), Error: true})
	}
}

func (h *MatchHandler) message(w http.ResponseWriter, status int, key string, args map[string]string) {
	writeJSON(w, status, viewmodel.Message{
		Key:     key,
		Message: h.sink.Catalog().Render(key, args),
		Error:   status >= http.StatusBadRequest,
	})
}

func (h *MatchHandler) unavailable(w http.ResponseWriter) {
	http.Error(w, "match loop unavailable", http.StatusServiceUnavailable)
}
