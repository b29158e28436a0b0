package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pixil98/go-quest/internal/engine"
	"github.com/pixil98/go-quest/internal/quest"
	"github.com/pixil98/go-quest/internal/session"
)

// Subscriber provides the ability to subscribe to message subjects.
type Subscriber interface {
	Subscribe(subject string, handler func(data []byte)) (unsubscribe func(), err error)
}

// Gateway is the HTTP boundary: clients POST events, poll snapshots, and
// hold a websocket that streams delta/snapshot frames relayed from the
// messaging layer.
type Gateway struct {
	addr    string
	service *session.Service
	sub     Subscriber
}

func New(addr string, service *session.Service, sub Subscriber) *Gateway {
	return &Gateway{
		addr:    addr,
		service: service,
		sub:     sub,
	}
}

// Start serves until the context is cancelled.
func (g *Gateway) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions/{session}/events", g.handleEvent)
	mux.HandleFunc("GET /v1/sessions/{session}/players/{player}/snapshot", g.handleSnapshot)
	mux.HandleFunc("GET /v1/sessions/{session}/players/{player}/stream", g.handleStream)

	srv := &http.Server{
		Addr:    g.addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "gateway listening", "addr", g.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (g *Gateway) handleEvent(w http.ResponseWriter, r *http.Request) {
	var evt engine.Event
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding event: %w", err))
		return
	}
	evt.SessionId = r.PathValue("session")

	snap, err := g.service.Submit(r.Context(), &evt)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (g *Gateway) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := g.service.Snapshot(r.Context(), r.PathValue("session"), r.PathValue("player"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// statusFor maps engine and store errors onto response codes. Engine
// errors are non-retryable bad input, not transient failures.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, engine.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrUnknownObject),
		errors.Is(err, engine.ErrUnknownNode),
		errors.Is(err, engine.ErrNodeKindMismatch),
		errors.Is(err, engine.ErrQuestMismatch):
		return http.StatusUnprocessableEntity
	}
	var verr *quest.ValidationError
	if errors.As(err, &verr) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
