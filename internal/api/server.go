package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/imu.tracker/internal/db"
	"github.com/banshee-data/imu.tracker/internal/httputil"
	"github.com/banshee-data/imu.tracker/internal/monitoring"
	"github.com/banshee-data/imu.tracker/internal/tracker"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

const defaultHistory = 500

// Controller issues commands to the running tracker. *tracker.Runner
// satisfies it.
type Controller interface {
	Reset(ctx context.Context) error
	Calibrate(ctx context.Context) (tracker.Calibration, error)
}

// SessionLister lists recorded sessions. *db.DB satisfies it.
type SessionLister interface {
	ListSessions(limit int) ([]db.Session, error)
}

// CommandSender forwards raw commands to the IMU board.
type CommandSender interface {
	SendCommand(command string) error
}

type Server struct {
	hub      *tracker.Hub
	ctl      Controller
	sessions SessionLister
	serial   CommandSender
}

// NewServer creates the HTTP API. sessions and serial may be nil when
// recording or a serial board is not configured.
func NewServer(hub *tracker.Hub, ctl Controller, sessions SessionLister, serial CommandSender) *Server {
	return &Server{
		hub:      hub,
		ctl:      ctl,
		sessions: sessions,
		serial:   serial,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/orientation", s.showOrientation)
	mux.HandleFunc("/api/history", s.showHistory)
	mux.HandleFunc("/api/reset", s.resetOrientation)
	mux.HandleFunc("/api/calibrate", s.calibrate)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/command", s.sendCommandHandler)
	mux.HandleFunc("/charts/roll", s.rollChart)
	return mux
}

func (s *Server) showOrientation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	snap, ok := s.hub.Latest()
	if !ok {
		httputil.ServiceUnavailable(w, "no samples processed yet")
		return
	}
	httputil.WriteJSONOK(w, snap)
}

func (s *Server) showHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	n, err := httputil.QueryInt(r, "n", defaultHistory, s.hub.Cap())
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, s.hub.History(n))
}

func (s *Server) resetOrientation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if err := s.ctl.Reset(r.Context()); err != nil {
		writeCommandError(w, err)
		return
	}
	snap, _ := s.hub.Latest()
	httputil.WriteJSONOK(w, snap)
}

func (s *Server) calibrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	c, err := s.ctl.Calibrate(r.Context())
	if err != nil {
		writeCommandError(w, err)
		return
	}
	httputil.WriteJSONOK(w, c)
}

func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tracker.ErrNotRunning):
		httputil.ServiceUnavailable(w, err.Error())
	case errors.Is(err, tracker.ErrCalibrationTimeout):
		httputil.WriteJSONError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httputil.WriteJSONError(w, http.StatusRequestTimeout, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.sessions == nil {
		httputil.ServiceUnavailable(w, "session recording is disabled")
		return
	}
	limit, err := httputil.QueryInt(r, "limit", 50, 1000)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	sessions, err := s.sessions.ListSessions(limit)
	if err != nil {
		httputil.InternalServerError(w, "failed to list sessions")
		monitoring.Logf("failed to list sessions: %v", err)
		return
	}
	httputil.WriteJSONOK(w, sessions)
}

func (s *Server) sendCommandHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.serial == nil {
		http.Error(w, "No serial board attached", http.StatusServiceUnavailable)
		return
	}

	command := r.FormValue("command")
	if command == "" {
		http.Error(w, "Missing command", http.StatusBadRequest)
		return
	}
	if err := s.serial.SendCommand(command); err != nil {
		http.Error(w, "Failed to send command", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "Command sent successfully")
}
