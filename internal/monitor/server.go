// Package monitor serves a read-only diagnostic HTTP API over a running
// kernel. Handlers never touch kernel state directly: everything goes
// through Kernel.Snapshot, which is safe against the simulated threads.
package monitor

import (
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/gokern/internal/kernel"
	"github.com/me/gokern/internal/memory"
	"github.com/me/gokern/pkg/model"
)

// Server is the diagnostic REST server.
type Server struct {
	router chi.Router
	kernel *kernel.Kernel
	logger *slog.Logger
}

// New creates a Server with all routes registered.
func New(k *kernel.Kernel, logger *slog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		kernel: k,
		logger: logger.With("component", "monitor"),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/threads", s.handleThreads)
		r.Get("/frames", s.handleFrames)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, RequestIDFromContext(r.Context()), http.StatusNotFound, &model.APIError{
			Code:    model.ErrNotFound,
			Message: "no such endpoint: " + r.URL.Path,
		})
	})
}

type statusResponse struct {
	Status    string `json:"status"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Policy    string `json:"policy"`
	Tick      int64  `json:"tick"`
	RAM       string `json:"ram"`
	Swap      string `json:"swap"`
	Frames    int    `json:"frames"`
	PageSize  int    `json:"page_size"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	snap := s.kernel.Snapshot()
	respondOK(w, reqID, statusResponse{
		Status:    "running",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.kernel.StartTime()).Round(time.Second).String(),
		Policy:    snap.Policy,
		Tick:      snap.Tick,
		RAM:       humanize.IBytes(uint64(snap.NumFrames * snap.PageSize)),
		Swap:      humanize.IBytes(uint64(snap.NumSwapSlots * snap.PageSize)),
		Frames:    snap.NumFrames,
		PageSize:  snap.PageSize,
	})
}

type threadsResponse struct {
	Current     string              `json:"current"`
	LiveThreads int                 `json:"live_threads"`
	Tick        int64               `json:"tick"`
	Ready       []kernel.ThreadInfo `json:"ready"`
	Sleeping    []kernel.ThreadInfo `json:"sleeping"`
}

func (s *Server) handleThreads(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	snap := s.kernel.Snapshot()
	respondOK(w, reqID, threadsResponse{
		Current:     snap.Current,
		LiveThreads: snap.LiveThreads,
		Tick:        snap.Tick,
		Ready:       snap.Ready,
		Sleeping:    snap.Sleeping,
	})
}

type framesResponse struct {
	NumFrames    int               `json:"num_frames"`
	NumSwapSlots int               `json:"num_swap_slots"`
	Frames       []memory.DirEntry `json:"frames"`
	SwapSlots    []memory.DirEntry `json:"swap_slots"`
}

func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	snap := s.kernel.Snapshot()
	respondOK(w, reqID, framesResponse{
		NumFrames:    snap.NumFrames,
		NumSwapSlots: snap.NumSwapSlots,
		Frames:       snap.Frames,
		SwapSlots:    snap.SwapSlots,
	})
}
