package core

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Srinivas26k/ZoomPollMaster/internal/config"
	"github.com/Srinivas26k/ZoomPollMaster/internal/orchestrator"
	"github.com/Srinivas26k/ZoomPollMaster/internal/storage"
	"github.com/Srinivas26k/ZoomPollMaster/pkg/logx"
)

// SessionSecretEnv holds the bearer token for the local HTTP mirror. The
// server refuses to start without it; an unauthenticated control surface is
// worse than none.
const SessionSecretEnv = "SESSION_SECRET"

// envelope is the uniform response shape of the mirror.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// webServer mirrors the CLI command surface over local HTTP. Every trigger
// lands on the same orchestrator (and so the same worker queue) that the
// scheduler feeds.
type webServer struct {
	mu   sync.Mutex
	log  logx.Logger
	srv  *http.Server
	ln   net.Listener
	addr string

	orch    *orchestrator.Orchestrator
	ring    *logx.Ring
	store   storage.Store
	cfg     func() *config.Config
	secret  string
	limiter *rate.Limiter
}

func newWebServer(orch *orchestrator.Orchestrator, ring *logx.Ring, store storage.Store, cfg func() *config.Config, log logx.Logger) *webServer {
	return &webServer{
		log:   log,
		orch:  orch,
		ring:  ring,
		store: store,
		cfg:   cfg,
		// Triggers are human-paced; anything faster is a bug or abuse.
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// Apply starts or stops the server to match cfg. Safe to call again on
// config reload.
func (w *webServer) Apply(ctx context.Context, cfg config.WebConfig) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !cfg.Enabled {
		w.stopLocked(ctx)
		return
	}
	if w.srv != nil && w.addr == cfg.Addr {
		return
	}

	secret := strings.TrimSpace(os.Getenv(SessionSecretEnv))
	if secret == "" {
		w.log.Warn("web mirror disabled: SESSION_SECRET is not set")
		w.stopLocked(ctx)
		return
	}
	w.secret = secret

	w.stopLocked(ctx)
	w.startLocked(cfg)
}

func (w *webServer) startLocked(cfg config.WebConfig) {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		w.log.Error("web listen failed", logx.String("addr", cfg.Addr), logx.Err(err))
		return
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      w.routes(),
		ReadTimeout:  durOr(cfg.ReadTimeout, 10*time.Second),
		WriteTimeout: durOr(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  durOr(cfg.IdleTimeout, time.Minute),
	}
	w.srv = srv
	w.ln = ln
	w.addr = cfg.Addr

	go func() {
		w.log.Info("web mirror listening", logx.String("addr", cfg.Addr))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.log.Error("web server exited", logx.Err(err))
		}
	}()
}

func (w *webServer) stopLocked(ctx context.Context) {
	if w.srv == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = w.srv.Shutdown(shutdownCtx)
	w.srv = nil
	w.ln = nil
	w.addr = ""
	w.log.Info("web mirror stopped")
}

func (w *webServer) Stop(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked(ctx)
}

func durOr(raw string, def time.Duration) time.Duration {
	d, err := config.ParseDurationOrDefault("", raw, def)
	if err != nil {
		return def
	}
	return d
}

func (w *webServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /api/status", w.auth(w.handleStatus))
	mux.HandleFunc("GET /api/config", w.auth(w.handleConfig))
	mux.HandleFunc("GET /api/logs", w.auth(w.handleLogs))
	mux.HandleFunc("GET /api/export-logs", w.auth(w.handleExportLogs))
	mux.HandleFunc("GET /api/polls", w.auth(w.handlePolls))

	mux.HandleFunc("POST /api/join", w.auth(w.limited(w.handleJoin)))
	mux.HandleFunc("POST /api/leave", w.auth(w.limited(w.handleLeave)))
	mux.HandleFunc("POST /api/start", w.auth(w.limited(w.handleStart)))
	mux.HandleFunc("POST /api/stop", w.auth(w.limited(w.handleStop)))
	mux.HandleFunc("POST /api/capture", w.auth(w.limited(w.trigger(w.orch.CaptureNow))))
	mux.HandleFunc("POST /api/generate", w.auth(w.limited(w.trigger(w.orch.GenerateNow))))
	mux.HandleFunc("POST /api/post", w.auth(w.limited(w.trigger(w.orch.PostNow))))
	return mux
}

func (w *webServer) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(w.secret)) != 1 {
			writeJSON(rw, http.StatusUnauthorized, envelope{Success: false, Message: "unauthorized"})
			return
		}
		next(rw, r)
	}
}

func (w *webServer) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !w.limiter.Allow() {
			writeJSON(rw, http.StatusTooManyRequests, envelope{Success: false, Message: "too many requests"})
			return
		}
		next(rw, r)
	}
}

// trigger adapts the orchestrator's manual trigger methods.
func (w *webServer) trigger(fn func() error) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		writeResult(rw, fn(), "accepted")
	}
}

func (w *webServer) handleStatus(rw http.ResponseWriter, _ *http.Request) {
	writeJSON(rw, http.StatusOK, envelope{Success: true, Data: w.orch.Status()})
}

func (w *webServer) handleConfig(rw http.ResponseWriter, _ *http.Request) {
	writeJSON(rw, http.StatusOK, envelope{Success: true, Data: w.cfg()})
}

func (w *webServer) handleLogs(rw http.ResponseWriter, r *http.Request) {
	n := 100
	if raw := r.URL.Query().Get("n"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			n = v
		}
	}
	writeJSON(rw, http.StatusOK, envelope{Success: true, Data: w.ring.Last(n)})
}

func (w *webServer) handleExportLogs(rw http.ResponseWriter, _ *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	rw.Header().Set("Content-Disposition", `attachment; filename="zoompollmaster-logs.txt"`)
	for _, e := range w.ring.Last(int(w.ring.Total())) {
		fmt.Fprintf(rw, "%s %-5s %s\n", e.Time.Format(time.RFC3339), strings.ToUpper(e.Level), e.Message)
	}
}

func (w *webServer) handlePolls(rw http.ResponseWriter, r *http.Request) {
	polls, err := w.store.RecentPolls(r.Context(), 20)
	if err != nil {
		if errors.Is(err, storage.ErrDisabled) {
			writeJSON(rw, http.StatusOK, envelope{Success: true, Message: "history store is disabled"})
			return
		}
		writeJSON(rw, http.StatusInternalServerError, envelope{Success: false, Message: err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, envelope{Success: true, Data: polls})
}

type joinRequest struct {
	MeetingID   string `json:"meeting_id"`
	Passcode    string `json:"passcode"`
	DisplayName string `json:"display_name"`
	Client      string `json:"client"` // web|desktop, defaults to the configured client
}

func (w *webServer) handleJoin(rw http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(rw, http.StatusBadRequest, envelope{Success: false, Message: "bad request body: " + err.Error()})
		return
	}
	writeResult(rw, w.orch.Join(r.Context(), req.MeetingID, req.Passcode, req.DisplayName, req.Client), "joined")
}

func (w *webServer) handleLeave(rw http.ResponseWriter, r *http.Request) {
	writeResult(rw, w.orch.Leave(r.Context()), "left")
}

func (w *webServer) handleStart(rw http.ResponseWriter, _ *http.Request) {
	writeResult(rw, w.orch.Start(), "started")
}

func (w *webServer) handleStop(rw http.ResponseWriter, _ *http.Request) {
	writeResult(rw, w.orch.Stop(), "stopped")
}

func writeResult(rw http.ResponseWriter, err error, okMsg string) {
	if err != nil {
		writeJSON(rw, statusFor(err), envelope{Success: false, Message: err.Error()})
		return
	}
	writeJSON(rw, http.StatusOK, envelope{Success: true, Message: okMsg})
}

// statusFor maps caller-misuse errors to client status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrActionInProgress),
		errors.Is(err, orchestrator.ErrSessionActive):
		return http.StatusConflict
	case errors.Is(err, orchestrator.ErrNoSession),
		errors.Is(err, orchestrator.ErrNotConnected),
		errors.Is(err, orchestrator.ErrNotRunning):
		return http.StatusBadRequest
	case errors.Is(err, orchestrator.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
