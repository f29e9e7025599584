// Package api exposes the daemon's control surface: a small JSON HTTP API
// over the bot registry, the Prometheus endpoint, and a websocket pushing
// periodic status snapshots.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"volume-bot-go/internal/engine"
	"volume-bot-go/internal/exchange"
	"volume-bot-go/internal/models"
	"volume-bot-go/internal/store"
)

// statusPushInterval is how often the websocket sends a fresh snapshot.
const statusPushInterval = 5 * time.Second

// Server wires the HTTP handlers over the manager and the repository.
type Server struct {
	manager  *engine.Manager
	repo     store.Repository
	log      *zap.SugaredLogger
	upgrader websocket.Upgrader
}

// NewServer builds the API server.
func NewServer(manager *engine.Manager, repo store.Repository, log *zap.SugaredLogger) *Server {
	return &Server{
		manager: manager,
		repo:    repo,
		log:     log,
		upgrader: websocket.Upgrader{
			// The daemon binds to an operator-controlled address; no
			// origin policy is enforced.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/bots", s.handleCreate)
	mux.HandleFunc("GET /api/bots", s.handleList)
	mux.HandleFunc("GET /api/bots/{id}/status", s.handleStatus)
	mux.HandleFunc("GET /api/bots/{id}/orders", s.handleOrders)
	mux.HandleFunc("GET /api/bots/{id}/logs", s.handleLogs)
	mux.HandleFunc("POST /api/bots/{id}/start", s.handleStart)
	mux.HandleFunc("POST /api/bots/{id}/stop", s.handleStop)
	mux.HandleFunc("POST /api/bots/{id}/reset", s.handleReset)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws/status", s.handleStatusStream)
	return mux
}

// envelope mirrors the response shape of the upstream API: error flag plus
// either data or a detail message.
type envelope struct {
	Error  bool        `json:"error"`
	Detail string      `json:"detail,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Data: data}); err != nil {
		s.log.Errorw("encoding response", "error", err)
	}
}

func (s *Server) respondErr(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: true, Detail: detail})
}

// botView is a BotConfig with credentials stripped for API responses.
type botView struct {
	models.BotConfig
	Running bool `json:"running"`
}

func (s *Server) view(bot *models.BotConfig) botView {
	v := botView{BotConfig: *bot, Running: s.manager.IsRunning(bot.ID)}
	v.APIKey = ""
	v.SecretKey = ""
	v.Passphrase = ""
	return v
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var bot models.BotConfig
	if err := json.NewDecoder(r.Body).Decode(&bot); err != nil {
		s.respondErr(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	switch {
	case bot.Symbol == "":
		s.respondErr(w, http.StatusBadRequest, "symbol is required")
		return
	case bot.Exchange == "":
		s.respondErr(w, http.StatusBadRequest, "exchange is required")
		return
	case bot.TotalOrderVolume <= 0:
		s.respondErr(w, http.StatusBadRequest, "total_order_volume must be positive")
		return
	case bot.PerOrderVolume <= 0:
		s.respondErr(w, http.StatusBadRequest, "per_order_volume must be positive")
		return
	}

	bot.ID = uuid.NewString()
	bot.Status = models.StatusIdle
	bot.RemainingVolume = bot.TotalOrderVolume
	bot.CompletedVolume = 0
	bot.TotalOrders = 0
	bot.SuccessfulOrders = 0
	bot.ErrorMessage = ""
	bot.CreatedAt = time.Now()

	client, err := exchange.NewClient(&bot)
	if err != nil {
		if errors.Is(err, exchange.ErrUnsupportedExchange) {
			s.respondErr(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	client.Close()

	if err := s.repo.SaveBot(&bot); err != nil {
		s.respondErr(w, http.StatusInternalServerError, "saving bot: "+err.Error())
		return
	}
	s.respond(w, http.StatusCreated, s.view(&bot))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	bots, err := s.repo.ListBots()
	if err != nil {
		s.respondErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]botView, 0, len(bots))
	for _, bot := range bots {
		views = append(views, s.view(bot))
	}
	s.respond(w, http.StatusOK, views)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	bot, err := s.repo.GetBot(r.PathValue("id"))
	if err != nil {
		s.botError(w, err)
		return
	}
	s.respond(w, http.StatusOK, s.view(bot))
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.repo.GetBot(id); err != nil {
		s.botError(w, err)
		return
	}
	orders, err := s.repo.ListOrders(id)
	if err != nil {
		s.respondErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respond(w, http.StatusOK, orders)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.repo.GetBot(id); err != nil {
		s.botError(w, err)
		return
	}
	logs, err := s.repo.ListLogs(id, 200)
	if err != nil {
		s.respondErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respond(w, http.StatusOK, logs)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.manager.Start(id)
	switch {
	case err == nil:
		s.respond(w, http.StatusOK, map[string]string{"id": id, "status": string(models.StatusRunning)})
	case errors.Is(err, engine.ErrAlreadyRunning):
		s.respondErr(w, http.StatusConflict, "bot is already running")
	case errors.Is(err, store.ErrBotNotFound):
		s.respondErr(w, http.StatusNotFound, "bot not found")
	case errors.Is(err, engine.ErrInsufficientVolume):
		s.respondErr(w, http.StatusBadRequest, "no remaining volume; reset the bot first")
	case errors.Is(err, exchange.ErrUnsupportedExchange):
		s.respondErr(w, http.StatusBadRequest, err.Error())
	default:
		s.respondErr(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.manager.Stop(id)
	switch {
	case err == nil:
		s.respond(w, http.StatusOK, map[string]string{"id": id, "status": string(models.StatusStopped)})
	case errors.Is(err, engine.ErrNotRunning):
		// Stopping an already-stopped bot is reported without an error
		// flag so repeated stop clicks stay harmless.
		s.respond(w, http.StatusOK, map[string]string{"id": id, "detail": "bot is not running"})
	default:
		s.respondErr(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.manager.Reset(id)
	switch {
	case err == nil:
		s.respond(w, http.StatusOK, map[string]string{"id": id, "status": string(models.StatusIdle)})
	case errors.Is(err, engine.ErrAlreadyRunning):
		s.respondErr(w, http.StatusConflict, "stop the bot before resetting it")
	case errors.Is(err, store.ErrBotNotFound):
		s.respondErr(w, http.StatusNotFound, "bot not found")
	default:
		s.respondErr(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) botError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrBotNotFound) {
		s.respondErr(w, http.StatusNotFound, "bot not found")
		return
	}
	s.respondErr(w, http.StatusInternalServerError, err.Error())
}

// handleStatusStream upgrades to a websocket and pushes a status snapshot
// on connect and then on every tick until the client goes away.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Reads are discarded; their only purpose is noticing the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(statusPushInterval)
	defer ticker.Stop()

	for {
		if err := s.pushSnapshot(conn); err != nil {
			return
		}
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) pushSnapshot(conn *websocket.Conn) error {
	bots, err := s.repo.ListBots()
	if err != nil {
		s.log.Errorw("listing bots for status stream", "error", err)
		return err
	}
	views := make([]botView, 0, len(bots))
	for _, bot := range bots {
		views = append(views, s.view(bot))
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(map[string]interface{}{
		"time": time.Now().UTC(),
		"bots": views,
	})
}
