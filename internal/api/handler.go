package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/domain"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/repo"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/usecase"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/service"
)

// Auth headers for the webhook endpoint
const (
	HeaderToken     = "X-Chatlog-Token"
	HeaderSignature = "X-Chatlog-Signature"
)

// Server provides the HTTP surface: webhook intake, health, target CRUD
type Server struct {
	pipeline  *usecase.Pipeline
	targets   repo.TargetRepo
	state     repo.StateRepo
	decisions repo.DecisionLogRepo
	health    *service.HealthState

	token  string
	secret string

	server *http.Server
	port   int
}

// NewServer creates a new API server. token enables shared-secret auth,
// secret enables HMAC signature auth; either may be empty but not both.
func NewServer(
	pipeline *usecase.Pipeline,
	targets repo.TargetRepo,
	state repo.StateRepo,
	decisions repo.DecisionLogRepo,
	health *service.HealthState,
	token, secret string,
	port int,
) *Server {
	return &Server{
		pipeline:  pipeline,
		targets:   targets,
		state:     state,
		decisions: decisions,
		health:    health,
		token:     token,
		secret:    secret,
		port:      port,
	}
}

// Handler returns the route mux (exposed for tests)
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Webhook intake (push channel)
	mux.HandleFunc("/integrations/chat/webhook", s.handleWebhook)

	// Target management
	mux.HandleFunc("/api/targets", s.handleTargets)
	mux.HandleFunc("/api/targets/", s.handleTargetItem)

	// Decision trace
	mux.HandleFunc("/api/decisions/", s.handleDecisions)

	// Health
	mux.HandleFunc("/healthz", s.handleHealth)

	return mux
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}
	fmt.Printf("[API] Starting HTTP server on port %d\n", s.port)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Shutdown(context.Background())
	}
	return nil
}

// ============ Webhook ============

// webhookPayload is the push-channel wire shape, matching the gateway's
// message serialization
type webhookPayload struct {
	Talker     string `json:"talker"`
	Sender     string `json:"sender"`
	SenderName string `json:"senderName"`
	IsSelf     bool   `json:"isSelf"`
	Seq        int64  `json:"seq"`
	Time       string `json:"time"`
	Type       int    `json:"type"`
	Content    string `json:"content"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	// Authentication comes first: rejected payloads never reach the pipeline
	// and never consume an idempotency slot
	if status := s.authenticate(r, body); status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	ts, err := domain.ParseMessageTime(payload.Time)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	msg, err := domain.NormalizeMessage(payload.Talker, payload.Sender, payload.SenderName,
		payload.IsSelf, payload.Seq, ts, payload.Type, payload.Content)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	target, err := s.targets.Get(r.Context(), msg.Talker)
	if err != nil {
		s.writeError(w, err)
		return
	}

	inserted, err := s.pipeline.ProcessOne(r.Context(), target, msg)
	if err != nil {
		s.writeError(w, err)
		return
	}

	accepted := 0
	if inserted {
		accepted = 1
	}
	s.writeJSON(w, map[string]interface{}{"accepted": accepted})
}

// authenticate returns 0 when the request is authorized, else the HTTP
// status to reject with. Missing and mismatched credentials are both 403:
// the endpoint never distinguishes the two for callers.
func (s *Server) authenticate(r *http.Request, body []byte) int {
	token := r.Header.Get(HeaderToken)
	signature := r.Header.Get(HeaderSignature)

	if token == "" && signature == "" {
		return http.StatusForbidden
	}
	if s.token != "" && token != "" {
		if subtleEqual(token, s.token) {
			return 0
		}
		return http.StatusForbidden
	}
	if s.secret != "" && signature != "" {
		mac := hmac.New(sha256.New, []byte(s.secret))
		mac.Write(body)
		expected := hex.EncodeToString(mac.Sum(nil))
		if hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected)) {
			return 0
		}
		return http.StatusForbidden
	}
	return http.StatusForbidden
}

func subtleEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

// ============ Targets ============

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		targets, err := s.targets.List(ctx)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if targets == nil {
			targets = []*domain.TargetConfig{}
		}
		s.writeJSON(w, map[string]interface{}{"targets": targets})

	case http.MethodPost:
		var cfg domain.TargetConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if cfg.Talker == "" {
			http.Error(w, "talker is required", http.StatusBadRequest)
			return
		}
		stored, err := s.targets.Upsert(ctx, &cfg)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, stored)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// targetPatch carries partial updates; nil fields keep their stored values
type targetPatch struct {
	Enabled             *bool     `json:"enabled"`
	Category            *string   `json:"category"`
	CapturePolicy       *string   `json:"capture_policy"`
	ImportanceThreshold *int      `json:"importance_threshold"`
	WatchedParticipants *[]string `json:"watched_participants"`
	FocusTopics         *[]string `json:"focus_topics"`
	NoiseTolerance      *string   `json:"noise_tolerance"`
	BucketOverride      *string   `json:"bucket_override"`
}

func (s *Server) handleTargetItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	talker := strings.TrimPrefix(r.URL.Path, "/api/targets/")
	if talker == "" {
		http.Error(w, "talker is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		cfg, err := s.targets.Get(ctx, talker)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if cfg == nil {
			http.Error(w, "target not found", http.StatusNotFound)
			return
		}
		s.writeJSON(w, cfg)

	case http.MethodPut:
		var patch targetPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cfg, err := s.targets.Get(ctx, talker)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if cfg == nil {
			cfg = domain.DefaultTarget(talker)
		}
		applyPatch(cfg, &patch)
		stored, err := s.targets.Upsert(ctx, cfg)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, stored)

	case http.MethodDelete:
		removed, err := s.targets.Remove(ctx, talker)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if !removed {
			http.Error(w, "target not found", http.StatusNotFound)
			return
		}
		s.writeJSON(w, map[string]interface{}{"success": true})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func applyPatch(cfg *domain.TargetConfig, patch *targetPatch) {
	if patch.Enabled != nil {
		cfg.Enabled = *patch.Enabled
	}
	if patch.Category != nil {
		cfg.Category = domain.Category(*patch.Category)
	}
	if patch.CapturePolicy != nil {
		cfg.CapturePolicy = domain.CapturePolicy(*patch.CapturePolicy)
	}
	if patch.ImportanceThreshold != nil {
		cfg.ImportanceThreshold = *patch.ImportanceThreshold
	}
	if patch.WatchedParticipants != nil {
		cfg.WatchedParticipants = *patch.WatchedParticipants
	}
	if patch.FocusTopics != nil {
		cfg.FocusTopics = *patch.FocusTopics
	}
	if patch.NoiseTolerance != nil {
		cfg.NoiseTolerance = domain.NoiseTolerance(*patch.NoiseTolerance)
	}
	if patch.BucketOverride != nil {
		cfg.BucketOverride = *patch.BucketOverride
	}
}

// ============ Decisions ============

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	talker := strings.TrimPrefix(r.URL.Path, "/api/decisions/")
	if talker == "" {
		http.Error(w, "talker is required", http.StatusBadRequest)
		return
	}
	records, err := s.decisions.Recent(r.Context(), talker, 50)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if records == nil {
		records = []*domain.DecisionRecord{}
	}
	s.writeJSON(w, map[string]interface{}{"decisions": records})
}

// ============ Health ============

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	targets, err := s.targets.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	report := make(map[string]service.TalkerHealth, len(targets))
	for _, target := range targets {
		entry := service.TalkerHealth{
			Enabled:                     target.Enabled,
			ConsecutiveBackfillFailures: s.health.Failures(target.Talker),
		}
		if t, ok := s.health.LastBackfill(target.Talker); ok {
			entry.LastBackfillTime = &t
		}
		if count, err := s.state.ProcessedCount(r.Context(), target.Talker); err == nil {
			entry.ProcessedCount = count
		}
		counters := s.pipeline.Counters(target.Talker)
		if total := counters.Processed + counters.DedupSkipped; total > 0 {
			entry.DedupSkipRatio = float64(counters.DedupSkipped) / float64(total)
		}
		report[target.Talker] = entry
	}
	s.writeJSON(w, map[string]interface{}{"talkers": report})
}

// ============ Helpers ============

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Printf("[API] Failed to encode response: %v\n", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrMalformedPayload) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
