// Package api serves the world over HTTP and WebSocket: read-only state
// queries for the UI, control and game-lifecycle endpoints, and the /ws
// tick stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/xiaocai218/cultivation-world-simulator/internal/avatar"
	"github.com/xiaocai218/cultivation-world-simulator/internal/event"
	"github.com/xiaocai218/cultivation-world-simulator/internal/sim"
)

// Controller is the handle the HTTP layer drives. The composition root
// implements it around the live simulator, the save directory, and the
// language-switchable stores.
type Controller interface {
	// World and Simulator return the live instances; both may be swapped
	// out underneath by a load.
	World() *sim.World
	Simulator() *sim.Simulator

	Pause()
	Resume()
	// Reset throws the world away and runs a fresh genesis.
	Reset() error
	Shutdown()

	StartGame() error
	SaveGame(name string) error
	LoadGame(name string) error
	DeleteGame(name string) error
	ListGames() ([]string, error)

	SwitchLanguage(lang string) error
}

// Server is the HTTP surface. Start runs it until the context ends.
type Server struct {
	Ctrl Controller
	Host string
	Port int

	hub     *Hub
	started time.Time
}

// NewServer wires a server around a controller.
func NewServer(ctrl Controller, host string, port int) *Server {
	return &Server{Ctrl: ctrl, Host: host, Port: port, hub: NewHub()}
}

// Hub exposes the tick-broadcast hub so the composition root can feed it
// from the simulator's OnTick.
func (s *Server) Hub() *Hub { return s.hub }

// Handler builds the full route table. Start serves it; tests mount it on
// httptest servers.
func (s *Server) Handler() http.Handler {
	controlLimiter := NewRateLimiter(60, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/map", s.handleMap)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/detail", s.handleDetail)
	mux.HandleFunc("/api/rankings", s.handleRankings)

	mux.HandleFunc("/api/control/", controlLimiter.Middleware(s.handleControl))
	mux.HandleFunc("/api/game/", controlLimiter.Middleware(s.handleGame))
	mux.HandleFunc("/api/language", controlLimiter.Middleware(s.handleLanguage))

	mux.HandleFunc("/ws", s.hub.HandleWS)
	return mux
}

// Start serves until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	s.started = time.Now()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("http api listening", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// avatarSummary is the list-level avatar view.
type avatarSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Gender   string `json:"gender"`
	Level    int    `json:"level"`
	Realm    string `json:"realm"`
	Age      int    `json:"age"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Action   string `json:"action,omitempty"`
	SectName string `json:"sect,omitempty"`
	Dead     bool   `json:"dead,omitempty"`
}

func (s *Server) summarize(w *sim.World, a *avatar.Avatar) avatarSummary {
	out := avatarSummary{
		ID:     a.ID,
		Name:   a.DisplayName(),
		Gender: string(a.Gender),
		Level:  a.Progress.Level,
		Realm:  a.Progress.Realm().String(),
		Age:    a.AgeYears(w.Clock),
		X:      a.X,
		Y:      a.Y,
		Action: w.Runtime.CurrentName(a.ID),
		Dead:   a.Dead,
	}
	if sc := w.Sects.SectOf(a.ID); sc != nil {
		out.SectName = sc.Name
	}
	return out
}

// handleState returns the world snapshot the UI polls.
func (s *Server) handleState(rw http.ResponseWriter, r *http.Request) {
	w := s.Ctrl.World()
	simr := s.Ctrl.Simulator()

	avatars := make([]avatarSummary, 0, w.Avatars.LivingCount())
	for _, a := range w.Avatars.Living() {
		avatars = append(avatars, s.summarize(w, a))
	}

	recent, err := w.Log.RecentMajor(w.Cfg.Social.MajorEventContextNum)
	if err != nil {
		httpError(rw, http.StatusInternalServerError, err)
		return
	}

	state := map[string]any{
		"year":       w.Clock.Year(),
		"month":      w.Clock.Month(),
		"stamp":      w.Clock.String(),
		"running":    simr.Running(),
		"started":    humanize.Time(s.started),
		"living":     len(avatars),
		"population": humanize.Comma(int64(len(avatars) + len(w.Avatars.Mortals()))),
		"llm_ready":  w.LLMReady(),
		"avatars":    avatars,
		"events":     recent,
	}
	if w.Phenomenon.ActiveAt(w.Clock) {
		state["phenomenon"] = w.Phenomenon
	}
	writeJSON(rw, state)
}

// handleMap returns the static map once; the UI caches it.
func (s *Server) handleMap(rw http.ResponseWriter, r *http.Request) {
	w := s.Ctrl.World()
	regions := make([]any, 0, len(w.Map.Regions))
	for _, region := range w.Map.Regions {
		regions = append(regions, region)
	}
	writeJSON(rw, map[string]any{
		"width":   w.Map.Width,
		"height":  w.Map.Height,
		"regions": regions,
	})
}

// handleEvents pages the event log. Filters: avatar_id for one avatar's
// history, avatar_id_1 + avatar_id_2 for a pair, otherwise a cursor walk
// over everything. The avatar queries page downward by cursor and accept
// major=true or major=false to narrow by event weight.
func (s *Server) handleEvents(rw http.ResponseWriter, r *http.Request) {
	w := s.Ctrl.World()
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	var cursor int64
	if v := q.Get("cursor"); v != "" {
		cursor, _ = strconv.ParseInt(v, 10, 64)
	}
	filter := event.FilterAll
	switch q.Get("major") {
	case "true":
		filter = event.FilterMajor
	case "false":
		filter = event.FilterMinor
	}

	var (
		events []event.Event
		err    error
	)
	switch {
	case q.Get("avatar_id_1") != "" && q.Get("avatar_id_2") != "":
		events, err = w.Log.Between(q.Get("avatar_id_1"), q.Get("avatar_id_2"), cursor, limit, filter)
	case q.Get("avatar_id") != "":
		events, err = w.Log.ForAvatar(q.Get("avatar_id"), cursor, limit, filter)
	default:
		events, err = w.Log.Page(cursor, limit)
	}
	if err != nil {
		httpError(rw, http.StatusInternalServerError, err)
		return
	}

	next := int64(0)
	if len(events) > 0 {
		next = events[len(events)-1].Seq
	}
	writeJSON(rw, map[string]any{"events": events, "next_cursor": next})
}

// handleDetail returns the structured view of one avatar, region, or sect.
func (s *Server) handleDetail(rw http.ResponseWriter, r *http.Request) {
	w := s.Ctrl.World()
	kind := r.URL.Query().Get("type")
	id := r.URL.Query().Get("id")

	switch kind {
	case "avatar":
		a, ok := w.Avatars.Get(id)
		if !ok {
			httpError(rw, http.StatusNotFound, fmt.Errorf("unknown avatar %q", id))
			return
		}
		writeJSON(rw, map[string]any{
			"avatar":    a,
			"summary":   s.summarize(w, a),
			"relations": w.Graph.EdgesOf(id),
			"derived":   w.DerivedOf(id),
			"plans":     w.Runtime.Plans(id),
		})
	case "region":
		rid, err := strconv.Atoi(id)
		if err != nil {
			httpError(rw, http.StatusBadRequest, fmt.Errorf("region id must be numeric"))
			return
		}
		region, ok := w.Map.Regions[rid]
		if !ok {
			httpError(rw, http.StatusNotFound, fmt.Errorf("unknown region %d", rid))
			return
		}
		var present []avatarSummary
		for _, a := range w.Avatars.Living() {
			if region.Contains(a.X, a.Y) {
				present = append(present, s.summarize(w, a))
			}
		}
		writeJSON(rw, map[string]any{"region": region, "avatars": present})
	case "sect":
		sc, ok := w.Sects.Get(id)
		if !ok {
			httpError(rw, http.StatusNotFound, fmt.Errorf("unknown sect %q", id))
			return
		}
		var members []avatarSummary
		for _, mid := range sc.Members() {
			if a, ok := w.Avatars.Get(mid); ok {
				members = append(members, s.summarize(w, a))
			}
		}
		writeJSON(rw, map[string]any{"sect": sc, "roster": sc.Roster(), "members": members})
	default:
		httpError(rw, http.StatusBadRequest, fmt.Errorf("type must be avatar, region, or sect"))
	}
}

// handleRankings returns the latest leaderboard snapshot.
func (s *Server) handleRankings(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, s.Ctrl.World().Rankings)
}

// handleControl dispatches POST /api/control/{pause,resume,reset,reinit,
// shutdown}.
func (s *Server) handleControl(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(rw, http.StatusMethodNotAllowed, fmt.Errorf("control endpoints are POST"))
		return
	}
	op := r.URL.Path[len("/api/control/"):]
	switch op {
	case "pause":
		s.Ctrl.Pause()
	case "resume":
		s.Ctrl.Resume()
	case "reset", "reinit":
		if err := s.Ctrl.Reset(); err != nil {
			httpError(rw, http.StatusInternalServerError, err)
			return
		}
	case "shutdown":
		writeJSON(rw, map[string]any{"ok": true})
		s.Ctrl.Shutdown()
		return
	default:
		httpError(rw, http.StatusNotFound, fmt.Errorf("unknown control op %q", op))
		return
	}
	writeJSON(rw, map[string]any{"ok": true})
}

type gameRequest struct {
	Name string `json:"name"`
}

// handleGame dispatches POST /api/game/{start,save,load,delete} and GET
// /api/game/list.
func (s *Server) handleGame(rw http.ResponseWriter, r *http.Request) {
	op := r.URL.Path[len("/api/game/"):]

	if op == "list" {
		names, err := s.Ctrl.ListGames()
		if err != nil {
			httpError(rw, http.StatusInternalServerError, err)
			return
		}
		writeJSON(rw, map[string]any{"saves": names})
		return
	}

	if r.Method != http.MethodPost {
		httpError(rw, http.StatusMethodNotAllowed, fmt.Errorf("game endpoints are POST"))
		return
	}

	var req gameRequest
	if op != "start" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			httpError(rw, http.StatusBadRequest, fmt.Errorf("body must be {\"name\": ...}"))
			return
		}
	}

	var err error
	switch op {
	case "start":
		err = s.Ctrl.StartGame()
	case "save":
		err = s.Ctrl.SaveGame(req.Name)
	case "load":
		err = s.Ctrl.LoadGame(req.Name)
	case "delete":
		err = s.Ctrl.DeleteGame(req.Name)
	default:
		httpError(rw, http.StatusNotFound, fmt.Errorf("unknown game op %q", op))
		return
	}
	if err != nil {
		httpError(rw, http.StatusInternalServerError, err)
		return
	}
	writeJSON(rw, map[string]any{"ok": true})
}

type languageRequest struct {
	Language string `json:"language"`
}

// handleLanguage switches the static data and prompt templates.
func (s *Server) handleLanguage(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(rw, http.StatusMethodNotAllowed, fmt.Errorf("language switch is POST"))
		return
	}
	var req languageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Language == "" {
		httpError(rw, http.StatusBadRequest, fmt.Errorf("body must be {\"language\": ...}"))
		return
	}
	if err := s.Ctrl.SwitchLanguage(req.Language); err != nil {
		httpError(rw, http.StatusBadRequest, err)
		return
	}
	writeJSON(rw, map[string]any{"ok": true, "language": req.Language})
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		slog.Warn("write response failed", "err", err)
	}
}

func httpError(rw http.ResponseWriter, code int, err error) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(code)
	_ = json.NewEncoder(rw).Encode(map[string]string{"error": err.Error()})
}
