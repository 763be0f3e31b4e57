package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/catalog"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/health"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/observe"
)

// frameStall is how old the last frame may be before /readyz fails.
const frameStall = 2 * time.Second

// Status is the body of GET /status.
type Status struct {
	Frames         uint64 `json:"frames"`
	ScheduledTasks int    `json:"scheduled_tasks"`
	CachedClips    int    `json:"cached_clips"`
	PendingLoads   int    `json:"pending_loads"`
	Sessions       int    `json:"sessions"`
	FaceCards      int    `json:"face_cards"`
	Scene          string `json:"scene"`
}

// Handler returns the debug endpoints:
//
//   - GET /healthz, GET /readyz
//   - GET /metrics, when a metrics handler was supplied
//   - GET /status
//   - POST /facecards/{face}?selected=true|false
//
// Every route goes through [observe.Middleware].
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()

	h := health.New(
		health.FrameClock(a.sched.LastTick, frameStall),
		health.Resources(func() error { return a.catalog.CheckResources(a.store) }),
	)
	h.Register(mux)

	if a.metricsH != nil {
		mux.Handle("GET /metrics", a.metricsH)
	}
	mux.HandleFunc("GET /status", a.handleStatus)
	mux.HandleFunc("POST /facecards/{face}", a.handleFaceCard)

	return observe.Middleware(a.metrics)(mux)
}

func (a *App) initServer() {
	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		return
	}
	a.server = &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	stats := a.cache.Stats()
	writeJSON(w, http.StatusOK, Status{
		Frames:         a.sched.Frames(),
		ScheduledTasks: a.sched.Len(),
		CachedClips:    stats.Cached,
		PendingLoads:   stats.Pending,
		Sessions:       a.intercept.Sessions(),
		FaceCards:      a.faces.Len(),
		Scene:          a.sceneName(),
	})
}

func (a *App) handleFaceCard(w http.ResponseWriter, r *http.Request) {
	face := r.PathValue("face")
	selected := true
	if v := r.URL.Query().Get("selected"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "selected must be a boolean", http.StatusBadRequest)
			return
		}
		selected = b
	}

	err := a.SelectFace(r.Context(), face, selected)
	switch {
	case errors.Is(err, ErrUnknownFace):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	key, _ := a.catalog.KeyForFace(face)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"key":      key,
		"path":     catalog.Path(key),
		"selected": selected,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
