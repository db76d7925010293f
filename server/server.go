// Package server exposes the voice webhooks the telephony gateway calls,
// plus health and metrics endpoints.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/creastat/voicedesk/dialogue"
	"github.com/creastat/voicedesk/metrics"
	"github.com/creastat/voicedesk/twiml"
)

// Version is reported by /health.
var Version = "dev"

// Receptionist answers the calls routed to this server.
type Receptionist interface {
	Welcome(ctx context.Context, callID string) (dialogue.Reply, error)
	HandleTurn(ctx context.Context, turn dialogue.Turn) (dialogue.Reply, error)
	EndCall(ctx context.Context, callID, reason string) error
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config is the listener setup.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the webhook HTTP server.
type Server struct {
	desk       Receptionist
	checks     map[string]HealthCheck
	httpServer *http.Server
	startTime  time.Time
	logger     zerolog.Logger
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status    string                   `json:"status"`
	Version   string                   `json:"version"`
	Uptime    string                   `json:"uptime"`
	Services  map[string]ServiceHealth `json:"services"`
	Timestamp string                   `json:"timestamp"`
}

// ServiceHealth is one dependency's health.
type ServiceHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Option configures a Server.
type Option func(*Server)

// WithHealthCheck adds a named dependency check to /health.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) {
		s.checks[name] = check
	}
}

// New creates the server and its routes.
func New(cfg Config, desk Receptionist, logger zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		desk:      desk,
		checks:    make(map[string]HealthCheck),
		startTime: time.Now(),
		logger:    logger.With().Str("component", "server").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/voice/inbound", s.inboundHandler)
	mux.HandleFunc("/voice/handle", s.turnHandler)
	mux.HandleFunc("/voice/status", s.statusHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "listen")
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// inboundHandler greets a new call.
func (s *Server) inboundHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "inbound"
	if !s.parseForm(w, r, endpoint) {
		return
	}
	reply, err := s.desk.Welcome(r.Context(), r.PostForm.Get("CallSid"))
	if err != nil {
		s.fail(w, endpoint, http.StatusBadRequest, err)
		return
	}
	s.writeReply(w, endpoint, reply)
}

// turnHandler answers one recognized utterance.
func (s *Server) turnHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "handle"
	if !s.parseForm(w, r, endpoint) {
		return
	}
	turn := dialogue.Turn{
		CallID:     r.PostForm.Get("CallSid"),
		CallerID:   r.PostForm.Get("From"),
		Utterance:  r.PostForm.Get("SpeechResult"),
		Confidence: confidence(r),
	}
	reply, err := s.desk.HandleTurn(r.Context(), turn)
	if err != nil {
		s.fail(w, endpoint, http.StatusBadRequest, err)
		return
	}
	s.writeReply(w, endpoint, reply)
}

// statusHandler drops the state of calls the gateway reports as finished.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "status"
	if !s.parseForm(w, r, endpoint) {
		return
	}
	callID := r.PostForm.Get("CallSid")
	status := r.PostForm.Get("CallStatus")
	if terminalStatus(status) {
		if err := s.desk.EndCall(r.Context(), callID, status); err != nil {
			s.fail(w, endpoint, http.StatusBadRequest, err)
			return
		}
	}
	metrics.RequestCount.WithLabelValues(endpoint, strconv.Itoa(http.StatusNoContent)).Inc()
	w.WriteHeader(http.StatusNoContent)
}

// healthHandler handles health check requests.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := "healthy"
	code := http.StatusOK
	services := map[string]ServiceHealth{
		"http": {Healthy: true, Message: "HTTP server running"},
	}
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			services[name] = ServiceHealth{Healthy: false, Message: err.Error()}
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		services[name] = ServiceHealth{Healthy: true}
	}

	response := HealthResponse{
		Status:    status,
		Version:   Version,
		Uptime:    time.Since(s.startTime).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(response)
}

func (s *Server) parseForm(w http.ResponseWriter, r *http.Request, endpoint string) bool {
	if r.Method != http.MethodPost {
		metrics.RequestCount.WithLabelValues(endpoint, strconv.Itoa(http.StatusMethodNotAllowed)).Inc()
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := r.ParseForm(); err != nil {
		s.fail(w, endpoint, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, endpoint string, code int, err error) {
	s.logger.Warn().Err(err).Str("endpoint", endpoint).Int("status", code).Msg("webhook rejected")
	metrics.RequestCount.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	http.Error(w, err.Error(), code)
}

func (s *Server) writeReply(w http.ResponseWriter, endpoint string, reply dialogue.Reply) {
	body, err := Render(reply).Render()
	if err != nil {
		s.fail(w, endpoint, http.StatusInternalServerError, err)
		return
	}
	metrics.RequestCount.WithLabelValues(endpoint, strconv.Itoa(http.StatusOK)).Inc()
	w.Header().Set("Content-Type", twiml.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Render converts a dialogue reply into voice markup: the spoken segments,
// then either a pause and hangup or a speech capture.
func Render(reply dialogue.Reply) *twiml.Response {
	resp := twiml.New()
	for _, seg := range reply.Segments {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		resp.Say(seg.Text, seg.Voice, seg.Lang)
	}
	if reply.Hangup {
		if reply.Pause > 0 {
			resp.Pause(reply.Pause)
		}
		return resp.Hangup()
	}
	if g := reply.Gather; g != nil {
		var prompt []twiml.Verb
		if g.Prompt.Text != "" {
			prompt = append(prompt, twiml.Say{Voice: g.Prompt.Voice, Language: g.Prompt.Lang, Text: g.Prompt.Text})
		}
		gather := twiml.SpeechGather(g.Action, g.Language, g.Hints, prompt...)
		if g.SpeechTimeout != "" {
			gather.SpeechTimeout = g.SpeechTimeout
		}
		if g.SpeechModel != "" {
			gather.SpeechModel = g.SpeechModel
		}
		gather.ActionOnEmptyResult = g.ActionOnEmptyResult
		resp.Add(gather)
	}
	return resp
}

// confidence reads the recognizer score. Unparseable or missing means 0.
func confidence(r *http.Request) float64 {
	raw := r.PostForm.Get("Confidence")
	if raw == "" {
		raw = r.PostForm.Get("SpeechConfidence")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

func terminalStatus(status string) bool {
	switch status {
	case "completed", "busy", "failed", "no-answer", "canceled":
		return true
	}
	return false
}
