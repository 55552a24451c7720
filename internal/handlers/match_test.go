package handlers

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyhunt/internal/arena"
	"tinyhunt/internal/config"
	"tinyhunt/internal/hud"
	"tinyhunt/internal/match"
	"tinyhunt/internal/presence"
	"tinyhunt/internal/viewmodel"
	"tinyhunt/pkg/realtime"
)

var epoch = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

type fixture struct {
	t        *testing.T
	router   chi.Router
	handler  *MatchHandler
	manager  *match.Manager
	provider *arena.Provider
	sink     *hud.Sink
	settings config.Settings
}

func testSettings() config.Settings {
	s := config.Defaults()
	s.MinPlayers = 2
	s.MaxPlayers = 4
	s.AutoStartSeconds = 5
	s.GameDurationSeconds = 60
	s.SuddenDeathEnabled = false
	return s
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{t: t, settings: testSettings()}
	logger := zerolog.Nop()
	f.provider = arena.NewProvider(arena.Layout{}, arena.Point{World: "world", Y: 64})
	f.sink = hud.NewSink(hud.DefaultCatalog(), logger)
	dir := presence.New(func() time.Time { return epoch }, logger)
	f.manager = match.NewManager(f.settings, f.provider, dir, f.sink,
		match.WithRand(rand.New(rand.NewSource(7))),
		match.WithStartTime(epoch),
		match.WithLogger(logger),
	)

	// The loop never ticks on its own: requests run as submitted work only.
	loop := realtime.NewLoop(f.manager.Step, realtime.WithTickChannel(make(chan time.Time)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	f.handler = NewMatchHandler(Deps{
		Loop:         loop,
		Manager:      f.manager,
		Directory:    dir,
		Sink:         f.sink,
		Store:        arena.NewStore(client, "test", logger),
		Provider:     f.provider,
		LoadSettings: func() (config.Settings, error) { return f.settings, nil },
		Logger:       logger,
	})
	f.handler.limits.now = func() time.Time { return epoch }
	f.router = chi.NewRouter()
	f.handler.RegisterRoutes(f.router)
	return f
}

func (f *fixture) post(path string, form url.Values) *httptest.ResponseRecorder {
	f.t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	f.t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (f *fixture) connect(name string) string {
	f.t.Helper()
	rec := f.post("/participants", url.Values{"name": {name}})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	var p viewmodel.Participant
	require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.NotEmpty(f.t, p.ID)
	return p.ID
}

func (f *fixture) status() viewmodel.Status {
	f.t.Helper()
	rec := f.get("/status")
	require.Equal(f.t, http.StatusOK, rec.Code)
	var st viewmodel.Status
	require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &st))
	return st
}

func (f *fixture) setupArena() {
	f.t.Helper()
	steps := []struct {
		path string
		at   string
		code int
	}{
		{"/admin/lobby/pos/1", "world:0,60,0", http.StatusOK},
		{"/admin/lobby/pos/2", "world:10,70,10", http.StatusOK},
		{"/admin/arenas/forest/pos/1", "world:100,60,100", http.StatusOK},
		{"/admin/arenas/forest/pos/2", "world:120,70,120", http.StatusOK},
		{"/admin/arenas/forest/spawns", "world:110,64,110", http.StatusOK},
	}
	rec := f.post("/admin/arenas", url.Values{"name": {"Forest"}})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
	for _, step := range steps {
		rec := f.post(step.path, url.Values{"at": {step.at}})
		require.Equal(f.t, step.code, rec.Code, "%s: %s", step.path, rec.Body.String())
	}
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) viewmodel.Message {
	t.Helper()
	var msg viewmodel.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	return msg
}

func TestConnectRejectsEmptyName(t *testing.T) {
	f := newFixture(t)
	rec := f.post("/participants", url.Values{"name": {"  "}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJoinAndLeave(t *testing.T) {
	f := newFixture(t)
	id := f.connect("alice")

	rec := f.post("/participants/"+id+"/join", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	msg := decodeMessage(t, rec)
	assert.Equal(t, "joined-queue", msg.Key)
	assert.Equal(t, "You joined the queue (position 1).", msg.Message)

	rec = f.post("/participants/"+id+"/join", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already-queued", decodeMessage(t, rec).Key)

	rec = f.post("/participants/"+id+"/leave", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.status().Queue)
}

func TestJoinUnknownParticipant(t *testing.T) {
	f := newFixture(t)
	rec := f.post("/participants/ghost/join", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not-connected", decodeMessage(t, rec).Key)
}

func TestJoinIsRateLimited(t *testing.T) {
	f := newFixture(t)
	id := f.connect("alice")

	assert.Equal(t, http.StatusOK, f.post("/participants/"+id+"/join", nil).Code)
	assert.Equal(t, http.StatusOK, f.post("/participants/"+id+"/leave", nil).Code)
	assert.Equal(t, http.StatusOK, f.post("/participants/"+id+"/join", nil).Code)
	rec := f.post("/participants/"+id+"/leave", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate-limited", decodeMessage(t, rec).Key)
}

func TestCountdownShowsInStatus(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"alice", "bob"} {
		id := f.connect(name)
		require.Equal(t, http.StatusOK, f.post("/participants/"+id+"/join", nil).Code)
	}
	st := f.status()
	assert.Equal(t, "countdown", st.State)
	assert.Len(t, st.Queue, 2)
	assert.Equal(t, 5, st.Countdown)
}

func TestForceStartNeedsArena(t *testing.T) {
	f := newFixture(t)
	rec := f.post("/admin/start", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not-enough-players", decodeMessage(t, rec).Key)

	for _, name := range []string{"alice", "bob"} {
		id := f.connect(name)
		require.Equal(t, http.StatusOK, f.post("/participants/"+id+"/join", nil).Code)
	}
	rec = f.post("/admin/start", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "configuration-missing", decodeMessage(t, rec).Key)
	st := f.status()
	assert.Equal(t, "waiting", st.State)
	assert.Len(t, st.Queue, 2, "queue survives a configuration error")
}

func TestArenaSetupThenStart(t *testing.T) {
	f := newFixture(t)
	ids := []string{f.connect("alice"), f.connect("bob")}
	for _, id := range ids {
		require.Equal(t, http.StatusOK, f.post("/participants/"+id+"/join", nil).Code)
	}
	f.setupArena()
	assert.True(t, f.provider.IsLobbyConfigured())
	assert.True(t, f.provider.IsArenaConfigured())

	rec := f.get("/admin/arenas")
	require.Equal(t, http.StatusOK, rec.Code)
	var arenas viewmodel.Arenas
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &arenas))
	assert.Equal(t, "forest", arenas.Active)
	require.Len(t, arenas.Arenas, 1)
	assert.True(t, arenas.Arenas[0].Ready)
	assert.Equal(t, 1, arenas.Arenas[0].Spawns)

	rec = f.post("/admin/start", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "start-requested", decodeMessage(t, rec).Key)

	st := f.status()
	assert.Equal(t, "running", st.State)
	assert.Equal(t, map[string]string{ids[0]: "runner", ids[1]: "runner"}, st.Roles)
	assert.Equal(t, "01:00", st.Remaining)

	rec = f.post("/admin/start", nil)
	assert.Equal(t, "already-running", decodeMessage(t, rec).Key)

	rec = f.post("/admin/stop", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	st = f.status()
	assert.Equal(t, "waiting", st.State)
	require.NotNil(t, st.LastOutcome)
	assert.Equal(t, "manual", st.LastOutcome.Reason)
}

func TestArenaSetupErrors(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.post("/admin/lobby/pos/3", url.Values{"at": {"world:0,0,0"}}).Code)
	assert.Equal(t, http.StatusBadRequest, f.post("/admin/lobby/pos/1", url.Values{"at": {"nowhere"}}).Code)
	assert.Equal(t, http.StatusBadRequest, f.post("/admin/arenas", url.Values{"name": {""}}).Code)

	rec := f.post("/admin/arenas/missing/spawns", url.Values{"at": {"world:0,0,0"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "arena-not-found", decodeMessage(t, rec).Key)

	require.Equal(t, http.StatusCreated, f.post("/admin/arenas", url.Values{"name": {"cave"}}).Code)
	rec = f.post("/admin/arenas", url.Values{"name": {"CAVE"}})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "arena-name-exists", decodeMessage(t, rec).Key)
}

func TestStopWithoutMatch(t *testing.T) {
	f := newFixture(t)
	rec := f.post("/admin/stop", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no-active-game", decodeMessage(t, rec).Key)
}

func TestHitValidation(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.post("/hits", url.Values{"attacker": {"a"}}).Code)

	alice := f.connect("alice")
	rec := f.post("/hits", url.Values{"attacker": {alice}, "target": {"b"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"converted":false}`, rec.Body.String())
}

func TestHitFromUnknownAttackerKeepsNoBucket(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		rec := f.post("/hits", url.Values{"attacker": {fmt.Sprintf("ghost-%d", i)}, "target": {"b"}})
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "not-connected", decodeMessage(t, rec).Key)
	}
	assert.Zero(t, f.handler.limits.len())
}

func TestReload(t *testing.T) {
	f := newFixture(t)
	f.settings.MinPlayers = 3
	rec := f.post("/admin/reload", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "reloaded", decodeMessage(t, rec).Key)
	assert.Equal(t, 3, f.status().MinPlayers)
}

func TestReloadStagedDuringMatch(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"alice", "bob"} {
		id := f.connect(name)
		require.Equal(t, http.StatusOK, f.post("/participants/"+id+"/join", nil).Code)
	}
	f.setupArena()
	require.Equal(t, http.StatusOK, f.post("/admin/start", nil).Code)

	f.settings.GameDurationSeconds = 120
	rec := f.post("/admin/reload", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "reload-staged", decodeMessage(t, rec).Key)
	assert.True(t, f.status().ReloadPending)

	require.Equal(t, http.StatusOK, f.post("/admin/stop", nil).Code)
	assert.False(t, f.status().ReloadPending)
}

func TestArenaSetupDuringCountdownSurvivesStagedReload(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"alice", "bob"} {
		id := f.connect(name)
		require.Equal(t, http.StatusOK, f.post("/participants/"+id+"/join", nil).Code)
	}
	require.Equal(t, "countdown", f.status().State)

	rec := f.post("/admin/reload", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	f.setupArena()
	assert.True(t, f.provider.IsArenaConfigured())

	require.Equal(t, http.StatusOK, f.post("/admin/stop", nil).Code)
	assert.False(t, f.status().ReloadPending)
	assert.True(t, f.provider.IsLobbyConfigured())
	assert.True(t, f.provider.IsArenaConfigured(), "staged reload must not replay the layout read before setup")
}

func TestDisconnectLeavesQueue(t *testing.T) {
	f := newFixture(t)
	id := f.connect("alice")
	require.Equal(t, http.StatusOK, f.post("/participants/"+id+"/join", nil).Code)

	req := httptest.NewRequest(http.MethodDelete, "/participants/"+id, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.status().Queue)
	assert.Equal(t, http.StatusNotFound, f.get("/participants/"+id).Code)

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/participants/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListParticipants(t *testing.T) {
	f := newFixture(t)
	alice := f.connect("alice")
	f.connect("bob")
	require.Equal(t, http.StatusOK, f.post("/participants/"+alice+"/join", nil).Code)

	rec := f.get("/participants")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []viewmodel.Participant
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].Name)
	assert.True(t, list[0].Queued)
	assert.False(t, list[1].Queued)
}

func TestHomeAndHUD(t *testing.T) {
	f := newFixture(t)
	rec := f.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<title>TinyHunt</title>")
	assert.Contains(t, rec.Body.String(), `data-stream="/stream"`)

	rec = f.get("/hud")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Queue: 0/2")
}

func TestStreamSendsInitialFragments(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var events []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() && len(events) < 2 {
		if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			events = append(events, name)
		}
	}
	assert.Equal(t, []string{"hud", "lines"}, events)
}

func TestSocketDeliversQueueLines(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	for _, name := range []string{"alice", "bob"} {
		id := f.connect(name)
		require.Equal(t, http.StatusOK, f.post("/participants/"+id+"/join", nil).Code)
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var event hud.Event
		require.NoError(t, json.Unmarshal(data, &event))
		require.Equal(t, hud.EventLine, event.Kind)
		require.NotNil(t, event.Line)
		assert.NotEqual(t, "participant", event.Line.Audience, "spectators never see personal lines")
		if event.Line.Key == "countdown-start" {
			assert.Equal(t, "The match starts in 5 seconds.", event.Line.Text)
			return
		}
	}
}

func TestSocketRejectsUnknownParticipant(t *testing.T) {
	f := newFixture(t)
	rec := f.get("/ws?id=ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
