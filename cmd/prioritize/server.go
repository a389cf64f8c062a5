package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/JohnPlummer/priority-scorer/scorer"
	"github.com/JohnPlummer/priority-scorer/triage"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 60
	serverMaxHeaderBytes      = 20
	serverMaxBodyBytes        = 4 << 20
	serverAddrDefault         = ":8080"
)

// healthSource is anything reporting its health, the scorer and the LLM
// extractor among them
type healthSource interface {
	GetHealth(ctx context.Context) scorer.HealthStatus
}

type healthCheck struct {
	name   string
	source healthSource
}

type rankRequest struct {
	Messages []triage.Message `json:"messages"`
}

type rankResponse struct {
	Outcomes []triage.Outcome `json:"outcomes"`
}

type messagesResponse struct {
	Messages []triage.Message `json:"messages"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"server"},
		Usage:   "Serve the ranking over HTTP",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  addrFlagName,
				Usage: "Address on which the server will listen",
				Value: serverAddrDefault,
			},
			&cli.IntFlag{
				Name:  storeSizeFlagName,
				Usage: "Most recent messages kept for explain requests",
				Value: triage.DefaultStoreSize,
			},
		}, scoringFlags()...),
		Action: cmdServe,
	}
}

func cmdServe(ctx context.Context, cmd *cli.Command) error {
	store := triage.NewBoundedStore(int(cmd.Int(storeSizeFlagName)))
	p, err := buildPipeline(cmd, true, triage.WithStore(store))
	if err != nil {
		return err
	}
	defer p.Close()

	s := &http.Server{
		Addr:           cmd.String(addrFlagName),
		Handler:        makeRouter(p.triager, p.checks...),
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("server started", "address", s.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("error shutting down server", "error", err)
	}
	return nil
}

func makeRouter(t *triage.Triager, checks ...healthCheck) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/rank", rankAPIHandler(t))
	mux.HandleFunc("GET /v1/messages", messagesAPIHandler(t))
	mux.HandleFunc("GET /v1/messages/{id}/explain", explainAPIHandler(t))
	mux.HandleFunc("GET /healthz", healthAPIHandler(checks))
	mux.Handle("GET /metrics", scorer.GetMetricsHandler())

	return mux
}

func rankAPIHandler(t *triage.Triager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rankRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, serverMaxBodyBytes)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
			return
		}

		outcomes, err := t.Prioritize(r.Context(), req.Messages)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
		if outcomes == nil {
			outcomes = []triage.Outcome{}
		}

		writeJSON(w, http.StatusOK, rankResponse{Outcomes: outcomes})
	}
}

func explainAPIHandler(t *triage.Triager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		outcome, err := t.Explain(r.Context(), r.PathValue("id"))
		switch {
		case errors.Is(err, triage.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		case err != nil:
			writeJSON(w, http.StatusUnprocessableEntity, outcome)
		default:
			writeJSON(w, http.StatusOK, outcome)
		}
	}
}

func messagesAPIHandler(t *triage.Triager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, messagesResponse{Messages: t.Messages()})
	}
}

// healthAPIHandler merges the checks; any unhealthy check fails the whole
func healthAPIHandler(checks []healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := mergeHealth(r.Context(), checks)
		status := http.StatusOK
		if !health.Healthy {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, health)
	}
}

func mergeHealth(ctx context.Context, checks []healthCheck) scorer.HealthStatus {
	merged := scorer.HealthStatus{
		Healthy: true,
		Status:  "healthy",
		Details: make(map[string]interface{}, len(checks)),
	}
	for _, c := range checks {
		h := c.source.GetHealth(ctx)
		merged.Details[c.name] = h
		if !h.Healthy {
			merged.Healthy = false
			merged.Status = "unhealthy"
		}
	}
	return merged
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("error encoding response", "error", err)
	}
}
