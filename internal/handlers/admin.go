package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"tinyhunt/internal/arena"
	"tinyhunt/internal/config"
	"tinyhunt/internal/match"
	"tinyhunt/internal/viewmodel"
)

const layoutLoadTimeout = 2 * time.Second

func (h *MatchHandler) forceStart(w http.ResponseWriter, r *http.Request) {
	var err error
	if !h.do(r, func() { err = h.manager.ForceStart() }) {
		h.unavailable(w)
		return
	}
	if err != nil {
		h.log.Info().Err(err).Msg("force start refused")
		h.reject(w, err)
		return
	}
	h.message(w, http.StatusOK, "start-requested", nil)
}

func (h *MatchHandler) stop(w http.ResponseWriter, r *http.Request) {
	var stopped bool
	if !h.do(r, func() { stopped = h.manager.StopManually() }) {
		h.unavailable(w)
		return
	}
	if !stopped {
		h.reject(w, match.ErrNoActiveMatch)
		return
	}
	h.message(w, http.StatusOK, "stop-requested", nil)
}

// reload rereads the settings file and the arena layout. Both are staged
// while a match is in flight.
func (h *MatchHandler) reload(w http.ResponseWriter, r *http.Request) {
	var (
		settings config.Settings
		err      error
	)
	if h.settings != nil {
		settings, err = h.settings()
	} else {
		err = eris.New("no settings source")
	}
	if err != nil {
		h.log.Error().Err(err).Msg("reload settings")
		writeJSON(w, http.StatusInternalServerError, viewmodel.Message{Key: "reload-failed", Message: err.Error(), Error: true})
		return
	}
	var staged bool
	if !h.do(r, func() { staged, err = h.manager.Reload(settings, h.refreshLayout) }) {
		h.unavailable(w)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("reload arenas")
		writeJSON(w, http.StatusInternalServerError, viewmodel.Message{Key: "reload-failed", Message: err.Error(), Error: true})
		return
	}
	if staged {
		h.message(w, http.StatusAccepted, "reload-staged", nil)
		return
	}
	h.message(w, http.StatusOK, "reloaded", nil)
}

func (h *MatchHandler) listArenas(w http.ResponseWriter, r *http.Request) {
	layout, err := h.store.Load(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("load arenas")
		http.Error(w, "failed to load arenas", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toArenasView(layout))
}

func (h *MatchHandler) createArena(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	def, err := h.store.CreateArena(r.Context(), r.FormValue("name"))
	if err != nil {
		h.setupFailed(w, err)
		return
	}
	if !h.applyLayout(w, r) {
		return
	}
	h.message(w, http.StatusCreated, "arena-created", map[string]string{"arena": def.Name})
}

func (h *MatchHandler) setLobbyCorner(w http.ResponseWriter, r *http.Request) {
	corner, point, ok := cornerAndPoint(w, r)
	if !ok {
		return
	}
	if err := h.store.SetLobbyCorner(r.Context(), corner, point); err != nil {
		h.setupFailed(w, err)
		return
	}
	if !h.applyLayout(w, r) {
		return
	}
	h.message(w, http.StatusOK, "lobby-pos-set", map[string]string{"corner": strconv.Itoa(corner)})
}

func (h *MatchHandler) setArenaCorner(w http.ResponseWriter, r *http.Request) {
	corner, point, ok := cornerAndPoint(w, r)
	if !ok {
		return
	}
	if err := h.store.SetArenaCorner(r.Context(), chi.URLParam(r, "name"), corner, point); err != nil {
		h.setupFailed(w, err)
		return
	}
	if !h.applyLayout(w, r) {
		return
	}
	h.message(w, http.StatusOK, "arena-pos-set", map[string]string{"corner": strconv.Itoa(corner)})
}

func (h *MatchHandler) addSpawn(w http.ResponseWriter, r *http.Request) {
	point, ok := formPoint(w, r)
	if !ok {
		return
	}
	count, err := h.store.AddSpawn(r.Context(), chi.URLParam(r, "name"), point)
	if err != nil {
		h.setupFailed(w, err)
		return
	}
	if !h.applyLayout(w, r) {
		return
	}
	h.message(w, http.StatusOK, "arena-spawn-added", map[string]string{"count": strconv.Itoa(count)})
}

func (h *MatchHandler) activateArena(w http.ResponseWriter, r *http.Request) {
	if err := h.store.SetActive(r.Context(), chi.URLParam(r, "name")); err != nil {
		h.setupFailed(w, err)
		return
	}
	if !h.applyLayout(w, r) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// applyLayout hands the stored layout to the provider, after the current
// match if one is in flight.
func (h *MatchHandler) applyLayout(w http.ResponseWriter, r *http.Request) bool {
	var (
		staged bool
		err    error
	)
	if !h.do(r, func() { staged, err = h.manager.ReloadArena(h.refreshLayout) }) {
		h.unavailable(w)
		return false
	}
	if err != nil {
		h.log.Error().Err(err).Msg("apply arenas")
		http.Error(w, "failed to apply arenas", http.StatusInternalServerError)
		return false
	}
	if staged {
		h.log.Info().Msg("arena change staged until the match ends")
	}
	return true
}

// refreshLayout reads the layout when it is applied rather than when it was
// requested, so a staged apply never replays a stale layout. It runs on the
// loop goroutine.
func (h *MatchHandler) refreshLayout() error {
	ctx, cancel := context.WithTimeout(context.Background(), layoutLoadTimeout)
	defer cancel()
	layout, err := h.store.Load(ctx)
	if err != nil {
		return err
	}
	h.provider.Set(layout)
	return nil
}

func (h *MatchHandler) setupFailed(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, arena.ErrArenaExists):
		h.message(w, http.StatusConflict, "arena-name-exists", nil)
	case eris.Is(err, arena.ErrUnknownArena):
		h.message(w, http.StatusNotFound, "arena-not-found", nil)
	case eris.Is(err, arena.ErrBadCorner), eris.Is(err, arena.ErrEmptyName):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Error().Err(err).Msg("arena setup")
		http.Error(w, "arena setup failed", http.StatusInternalServerError)
	}
}

func cornerAndPoint(w http.ResponseWriter, r *http.Request) (int, arena.Point, bool) {
	corner, err := strconv.Atoi(chi.URLParam(r, "corner"))
	if err != nil || (corner != 1 && corner != 2) {
		http.Error(w, arena.ErrBadCorner.Error(), http.StatusBadRequest)
		return 0, arena.Point{}, false
	}
	point, ok := formPoint(w, r)
	return corner, point, ok
}

// formPoint reads the "at" form value, written world:x,y,z.
func formPoint(w http.ResponseWriter, r *http.Request) (arena.Point, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return arena.Point{}, false
	}
	point, err := arena.ParsePoint(r.FormValue("at"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return arena.Point{}, false
	}
	return point, true
}
