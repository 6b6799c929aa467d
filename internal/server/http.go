package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gitcg/gitcg-server-go/internal/game"
	"github.com/gitcg/gitcg-server-go/internal/metrics"
	"github.com/gitcg/gitcg-server-go/internal/repository"
)

// HTTPOptions configures the HTTP surface.
type HTTPOptions struct {
	Manager *Manager
	// Metrics is served on /metrics when set.
	Metrics           *metrics.Metrics
	AdminPasswordHash string
	// CheckOrigin overrides the WebSocket origin check. Nil accepts all
	// origins.
	CheckOrigin func(r *http.Request) bool
	Logger      *zap.Logger
}

type httpAPI struct {
	manager   *Manager
	adminHash string
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

type createMatchBody struct {
	Decks [2]string `json:"decks"`
	Bots  [2]bool   `json:"bots"`
	Seed  uint64    `json:"seed"`
}

// NewHTTPHandler routes the REST and WebSocket endpoints:
//
//	POST   /matches                  create a match
//	GET    /matches                  list matches
//	GET    /matches/{id}             match info
//	DELETE /matches/{id}             abort (admin)
//	GET    /matches/{id}/replay      replay so far, or the stored one
//	GET    /matches/{id}/replay?frame=F[&seat=N]
//	                                 seat N's view of frame F
//	GET    /matches/{id}/ws?seat=N   play seat N
//	GET    /healthz
//	GET    /metrics
func NewHTTPHandler(opts HTTPOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	api := &httpAPI{
		manager:   opts.Manager,
		adminHash: opts.AdminPasswordHash,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /matches", api.createMatch)
	mux.HandleFunc("GET /matches", api.listMatches)
	mux.HandleFunc("GET /matches/{id}", api.getMatch)
	mux.HandleFunc("DELETE /matches/{id}", api.abortMatch)
	mux.HandleFunc("GET /matches/{id}/replay", api.replay)
	mux.HandleFunc("GET /matches/{id}/ws", api.play)
	mux.HandleFunc("GET /healthz", api.health)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}
	return mux
}

func (a *httpAPI) createMatch(w http.ResponseWriter, r *http.Request) {
	var body createMatchBody
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	match, err := a.manager.CreateMatch(MatchRequest(body))
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, ErrShuttingDown) {
			code = http.StatusServiceUnavailable
		}
		writeError(w, code, err)
		return
	}
	writeJSON(w, http.StatusCreated, match.Info())
}

func (a *httpAPI) listMatches(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.manager.List())
}

func (a *httpAPI) getMatch(w http.ResponseWriter, r *http.Request) {
	match, err := a.manager.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, match.Info())
}

func (a *httpAPI) abortMatch(w http.ResponseWriter, r *http.Request) {
	if err := CheckAdminPassword(a.adminHash, r.Header.Get(AdminPasswordHeader)); err != nil {
		writeError(w, http.StatusForbidden, err)
		return
	}
	if err := a.manager.Abort(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *httpAPI) replay(w http.ResponseWriter, r *http.Request) {
	rp, err := a.manager.Replay(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, repository.ErrMatchNotFound):
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	q := r.URL.Query()
	if !q.Has("frame") {
		writeJSON(w, http.StatusOK, map[string]any{
			"matchId": rp.MatchID,
			"frames":  rp.Snapshot(),
		})
		return
	}

	index, err := strconv.Atoi(q.Get("frame"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid frame %q", q.Get("frame")))
		return
	}
	who := 0
	if seat := q.Get("seat"); seat != "" {
		if who, err = strconv.Atoi(seat); err != nil || (who != 0 && who != 1) {
			writeError(w, http.StatusBadRequest, ErrInvalidSeat)
			return
		}
	}
	st, err := rp.StateAt(a.manager.opts.Catalog.Registry, index)
	switch {
	case errors.Is(err, game.ErrFrameOutOfRange):
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		a.logger.Error("failed to decode replay frame",
			zap.String("match_id", rp.MatchID),
			zap.Int("frame", index),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"matchId":    rp.MatchID,
		"frame":      index,
		"frameCount": rp.Size(),
		"state":      game.ExposeState(who, st),
	})
}

// play upgrades to a WebSocket and binds it to a seat. Checks that can
// fail are done before the upgrade so the client gets a plain HTTP error.
func (a *httpAPI) play(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	who, err := strconv.Atoi(r.URL.Query().Get("seat"))
	if err != nil || (who != 0 && who != 1) {
		writeError(w, http.StatusBadRequest, ErrInvalidSeat)
		return
	}
	match, err := a.manager.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if match.bots[who] {
		writeError(w, http.StatusConflict, ErrSeatTaken)
		return
	}
	if match.Info().Status.Finished() {
		writeError(w, http.StatusGone, ErrMatchEnded)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	if err := a.manager.Attach(id, who, conn); err != nil {
		_ = conn.WriteJSON(Message{Type: MessageError, Error: err.Error()})
		_ = conn.Close()
	}
}

func (a *httpAPI) health(w http.ResponseWriter, _ *http.Request) {
	if !a.manager.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
