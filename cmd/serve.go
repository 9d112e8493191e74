package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadflow/leadflow-server/internal/model"
	"github.com/leadflow/leadflow-server/internal/pipeline"
	"github.com/leadflow/leadflow-server/internal/store"
	"github.com/leadflow/leadflow-server/internal/stream"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := newRouter(env)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(env *pipelineEnv) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/run", handleRun(env))
	r.Get("/api/run/stream", handleRunStream(env))
	r.Get("/api/runs", handleRunsList(env))
	r.Get("/api/runs/{id}", handleRunsGet(env))

	return r
}

// handleRun executes a one-shot run and replies with the persisted result.
func handleRun(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pipeline.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		run, err := env.Pipeline.Run(r.Context(), req)
		if err != nil {
			zap.L().Error("one-shot run failed",
				zap.String("userId", req.UserID),
				zap.Error(err),
			)
			// Bad input is on the caller; anything past validation
			// (discovery, persistence) is a server-side failure.
			status := http.StatusInternalServerError
			var verr *pipeline.ValidationError
			if errors.As(err, &verr) {
				status = http.StatusBadRequest
			}
			writeError(w, status, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"runId":     run.ID,
			"leadCount": run.LeadCount,
			"leads":     run.Leads,
		})
	}
}

// handleRunStream runs the pipeline and streams progress as SSE. The
// subscriber disconnecting cancels the run.
func handleRunStream(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, err := strconv.Atoi(q.Get("limit"))
		if err != nil {
			http.Error(w, "Invalid query", http.StatusBadRequest)
			return
		}
		req := pipeline.Request{
			UserID:    q.Get("userId"),
			Keywords:  q.Get("keywords"),
			Locations: q.Get("locations"),
			Limit:     limit,
		}
		if req.UserID == "" || req.Keywords == "" || req.Locations == "" {
			http.Error(w, "Invalid query", http.StatusBadRequest)
			return
		}

		ch := stream.NewChannel()
		go env.Pipeline.Stream(r.Context(), req, ch)

		if err := stream.ServeSSE(w, r, ch, stream.DefaultHeartbeat); err != nil {
			zap.L().Warn("sse stream ended with error", zap.Error(err))
		}
	}
}

func handleRunsList(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		userID := q.Get("userId")
		if userID == "" {
			writeError(w, http.StatusBadRequest, "userId is required")
			return
		}

		filter := store.RunFilter{Keywords: q.Get("keywords")}
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Limit = n
			}
		}

		runs, err := env.Store.ListRuns(r.Context(), userID, filter)
		if err != nil {
			zap.L().Error("list runs failed", zap.String("userId", userID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list runs failed")
			return
		}
		if runs == nil {
			runs = []model.RunSummary{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
	}
}

func handleRunsGet(env *pipelineEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("userId")
		if userID == "" {
			writeError(w, http.StatusBadRequest, "userId is required")
			return
		}

		run, err := env.Store.GetRun(r.Context(), userID, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
