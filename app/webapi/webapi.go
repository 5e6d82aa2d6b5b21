// Package webapi provides an operator HTTP API for the spam engine: status, recent decisions,
// stored audit records, dry-run checks and metrics.
package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/didip/tollbooth/v8"
	"github.com/didip/tollbooth/v8/limiter"
	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/dc-spam/lib/dcspam"
	"github.com/umputun/dc-spam/lib/spamcheck"
)

//go:generate moq --out mocks/detector.go --pkg mocks --with-resets --skip-ensure . Detector
//go:generate moq --out mocks/audit_reader.go --pkg mocks --with-resets --skip-ensure . AuditReader

const (
	defaultLimit = 20
	maxLimit     = 1000
	authUser     = "dc-spam"
)

// Server is a web API server.
type Server struct {
	Config
	started time.Time
}

// Config defines server parameters
type Config struct {
	Version     string        // version to show in /ping and /status
	ListenAddr  string        // listen address
	Detector    Detector      // spam detector
	Engine      dcspam.Config // engine settings reported by /status
	Activity    Activity      // activity store stats, optional
	AuditReader AuditReader   // stored audit records, optional
	Metrics     http.Handler  // prometheus handler, optional
	AuthPasswd  string        // basic auth password for user "dc-spam", no auth if empty
}

// Detector is a spam detector interface.
type Detector interface {
	Evaluate(msg spamcheck.Message, count int) (dcspam.Result, error)
	LastRecords(n int) []spamcheck.Record
}

// AuditReader is a storage of audit records.
type AuditReader interface {
	Read(ctx context.Context, limit int) ([]spamcheck.Record, error)
	Count(ctx context.Context) (map[string]int, error)
}

// Activity reports activity store size.
type Activity interface {
	Stats() dcspam.ActivityStats
}

// NewServer creates a new web API server.
func NewServer(config Config) *Server {
	return &Server{Config: config, started: time.Now()}
}

// Run starts the server and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	if s.AuthPasswd != "" {
		log.Printf("[INFO] basic auth enabled for webapi server")
	} else {
		log.Printf("[WARN] basic auth disabled, access to webapi is not protected")
	}

	srv := &http.Server{Addr: s.ListenAddr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout: 30 * time.Second, IdleTimeout: 30 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown webapi server: %v", err)
		} else {
			log.Printf("[INFO] webapi server stopped")
		}
	}()

	log.Printf("[INFO] start webapi server on %s", s.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to run server: %w", err)
	}
	return nil
}

// Handler returns the http handler with all routes and middlewares
func (s *Server) Handler() http.Handler {
	lmt := tollbooth.NewLimiter(50, nil)
	lmt.SetIPLookup(limiter.IPLookup{Name: "RemoteAddr"})

	router := routegroup.New(http.NewServeMux())
	router.Use(rest.Recoverer(lgr.Default()), rest.Throttle(1000))
	router.Use(rest.AppInfo("dc-spam", "umputun", s.Version), rest.Ping)
	router.Use(func(next http.Handler) http.Handler { return tollbooth.LimitHandler(lmt, next) })
	router.Use(rest.SizeLimit(1024 * 1024)) // 1M max request size

	if s.Metrics != nil {
		router.Handle("GET /metrics", s.Metrics) // scraped without auth
	}

	router.Group().Route(func(api *routegroup.Bundle) {
		if s.AuthPasswd != "" {
			api.Use(rest.BasicAuthWithPrompt(authUser, s.AuthPasswd))
		}
		api.HandleFunc("GET /status", s.statusHandler)   // engine settings and stats
		api.HandleFunc("GET /records", s.recordsHandler) // recent in-memory audit records
		api.HandleFunc("GET /audit", s.auditHandler)     // stored audit records
		api.HandleFunc("POST /check", s.checkHandler)    // dry-run check
	})
	return router
}

// statusHandler handles GET /status request. It returns engine settings, activity and audit stats.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	cfg := s.Engine
	resp := rest.JSON{
		"version":              s.Version,
		"uptime":               time.Since(s.started).Round(time.Second).String(),
		"mode":                 cfg.Mode,
		"monitor_count":        cfg.MonitorCount,
		"history_retention":    cfg.HistoryRetention.String(),
		"similarity_threshold": cfg.SimilarityThreshold,
		"recent_join":          cfg.RecentJoin.String(),
		"new_account_age":      cfg.NewAccountAge.String(),
		"score_threshold":      cfg.ScoreThreshold,
		"invite_domains":       cfg.InviteDomains,
		"weights": rest.JSON{
			dcspam.TriggerFirstMessage: cfg.Weights.FirstMessage,
			dcspam.TriggerURL:          cfg.Weights.URL,
			dcspam.TriggerInvite:       cfg.Weights.Invite,
			dcspam.TriggerCrossChannel: cfg.Weights.CrossChannel,
			dcspam.TriggerRecentJoin:   cfg.Weights.RecentJoin,
			dcspam.TriggerNewAccount:   cfg.Weights.NewAccount,
		},
	}
	if s.Activity != nil {
		resp["activity"] = s.Activity.Stats()
	}
	if s.AuditReader != nil {
		counts, err := s.AuditReader.Count(r.Context())
		if err != nil {
			log.Printf("[WARN] can't count audit records: %v", err)
		} else {
			resp["audit"] = counts
		}
	}
	rest.RenderJSON(w, resp)
}

// recordsHandler handles GET /records?limit=N request
func (s *Server) recordsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		rest.RenderJSON(w, rest.JSON{"error": "invalid limit", "details": err.Error()})
		return
	}
	rest.RenderJSON(w, s.Detector.LastRecords(limit))
}

// auditHandler handles GET /audit?limit=N request, newest records first
func (s *Server) auditHandler(w http.ResponseWriter, r *http.Request) {
	if s.AuditReader == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		rest.RenderJSON(w, rest.JSON{"error": "audit storage is not configured"})
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		rest.RenderJSON(w, rest.JSON{"error": "invalid limit", "details": err.Error()})
		return
	}
	recs, err := s.AuditReader.Read(r.Context(), limit)
	if err != nil {
		log.Printf("[WARN] can't read audit records: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		rest.RenderJSON(w, rest.JSON{"error": "can't read audit records", "details": err.Error()})
		return
	}
	rest.RenderJSON(w, recs)
}

// checkHandler handles POST /check request.
// It scores the text as a message of a user with no recent history and returns the decision.
func (s *Server) checkHandler(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Text         string `json:"text"`
		FirstMessage bool   `json:"first_message"`
		Count        int    `json:"count"` // message number of the author, overrides first_message
	}{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		rest.RenderJSON(w, rest.JSON{"error": "can't decode request", "details": err.Error()})
		log.Printf("[WARN] can't decode request: %v", err)
		return
	}

	count := req.Count
	if count == 0 {
		count = 2
		if req.FirstMessage {
			count = 1
		}
	}

	res, err := s.Detector.Evaluate(spamcheck.Message{Text: req.Text, Received: time.Now()}, count)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		rest.RenderJSON(w, rest.JSON{"error": "can't evaluate message", "details": err.Error()})
		return
	}
	rest.RenderJSON(w, rest.JSON{
		"scored":   res.Scored,
		"spam":     res.Decision.IsSpam(),
		"score":    res.Decision.Score,
		"action":   res.Decision.Action.String(),
		"triggers": res.Decision.Triggers,
		"checks":   res.Decision.Checks,
	})
}

func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit, nil
	}
	limit, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("can't parse %q: %w", v, err)
	}
	if limit < 1 {
		return 0, fmt.Errorf("limit must be positive, got %d", limit)
	}
	return min(limit, maxLimit), nil
}
