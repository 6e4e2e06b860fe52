package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/BrandonDHaskell/timecard/internal/timecard/attendance"
	"github.com/BrandonDHaskell/timecard/internal/timecard/service"
	"github.com/BrandonDHaskell/timecard/internal/timecard/store"
	"github.com/BrandonDHaskell/timecard/internal/timecard/types"
)

// maxRecordsLimit caps GET /v1/records and is its default.
const maxRecordsLimit = 1000

type Dependencies struct {
	Logger           *log.Logger
	Addr             string
	HeartbeatService *service.HeartbeatService
	SwipeService     *service.SwipeService
	Engine           *attendance.Engine

	// Metrics serves /metrics when set.
	Metrics http.Handler
}

type Server struct {
	httpServer       *http.Server
	logger           *log.Logger
	mux              *http.ServeMux
	heartbeatService *service.HeartbeatService
	swipeService     *service.SwipeService
	engine           *attendance.Engine
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:           d.Logger,
		mux:              mux,
		heartbeatService: d.HeartbeatService,
		swipeService:     d.SwipeService,
		engine:           d.Engine,
	}

	mux.HandleFunc("POST /v1/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("POST /v1/swipe", s.handleSwipe)
	mux.HandleFunc("GET /v1/status/{badge_id}", s.handleStatus)
	mux.HandleFunc("GET /v1/records", s.handleRecords)
	mux.HandleFunc("GET /v1/readers", s.handleReaders)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"server_time": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req types.HeartbeatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_body", "invalid request body")
		return
	}

	resp, err := s.heartbeatService.Record(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidReaderID) {
			writeError(w, r, http.StatusBadRequest, "invalid_reader_id", err.Error())
			return
		}
		s.logger.Printf("heartbeat error: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	respond(w, r, http.StatusOK, resp)
}

func (s *Server) handleReaders(w http.ResponseWriter, r *http.Request) {
	readers, err := s.heartbeatService.Readers(r.Context())
	if err != nil {
		s.logger.Printf("readers error: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	respond(w, r, http.StatusOK, types.ReadersResponse{
		Readers:    readers,
		ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleSwipe(w http.ResponseWriter, r *http.Request) {
	var req types.SwipeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_body", "invalid request body")
		return
	}

	resp, err := s.swipeService.Handle(r.Context(), req)
	switch {
	case errors.Is(err, service.ErrInvalidReaderID):
		writeError(w, r, http.StatusBadRequest, "invalid_reader_id", err.Error())
	case errors.Is(err, service.ErrInvalidCardID), errors.Is(err, attendance.ErrInvalidBadgeID):
		writeError(w, r, http.StatusBadRequest, "invalid_card_id", err.Error())
	case errors.Is(err, attendance.ErrInvalidAction):
		writeError(w, r, http.StatusBadRequest, "invalid_action", err.Error())
	case err != nil && resp.SwipeID == "":
		// Failed before a swipe id was assigned: the reader registry.
		s.logger.Printf("swipe error: %v", err)
		writeError(w, r, storeStatus(err), "store_error", "reader registry unavailable")
	case err != nil:
		// The swipe was decided as failed; the body says why.
		respond(w, r, storeStatus(err), resp)
	case !resp.Known:
		// Unknown readers are blocked from the attendance flow.
		respond(w, r, http.StatusForbidden, resp)
	default:
		respond(w, r, http.StatusOK, resp)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Status(r.Context(), r.PathValue("badge_id"))
	if err != nil {
		if errors.Is(err, attendance.ErrInvalidBadgeID) {
			writeError(w, r, http.StatusBadRequest, "invalid_badge_id", err.Error())
			return
		}
		s.logger.Printf("status error: %v", err)
		writeError(w, r, storeStatus(err), "store_error", "status unavailable")
		return
	}
	respond(w, r, http.StatusOK, statusResponse(snap))
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	// Without a limit the most recent maxRecordsLimit rows are returned.
	f := attendance.EntryFilter{BadgeID: q.Get("badge_id"), Limit: maxRecordsLimit}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		if n > 0 {
			f.Limit = min(n, maxRecordsLimit)
		}
	}

	entries, err := s.engine.Records(r.Context(), f)
	if err != nil {
		if errors.Is(err, attendance.ErrInvalidBadgeID) {
			writeError(w, r, http.StatusBadRequest, "invalid_badge_id", err.Error())
			return
		}
		s.logger.Printf("records error: %v", err)
		writeError(w, r, storeStatus(err), "store_error", "records unavailable")
		return
	}
	respond(w, r, http.StatusOK, recordsResponse(entries))
}

// storeStatus maps a classified store failure to 503 and anything else
// to 500.
func storeStatus(err error) int {
	if errors.Is(err, store.ErrUnavailable) || errors.Is(err, store.ErrTimeout) ||
		errors.Is(err, attendance.ErrStatusPending) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
