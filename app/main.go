package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/hashicorp/go-multierror"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/dc-spam/app/events"
	"github.com/umputun/dc-spam/app/metrics"
	"github.com/umputun/dc-spam/app/storage"
	"github.com/umputun/dc-spam/app/storage/engine"
	"github.com/umputun/dc-spam/app/webapi"
	"github.com/umputun/dc-spam/lib/dcspam"
	"github.com/umputun/dc-spam/lib/spamcheck"
)

type options struct {
	Discord struct {
		Token  string  `long:"token" env:"TOKEN" description:"discord bot token" required:"true"`
		Guilds []int64 `long:"guild" env:"GUILD" env-delim:"," description:"guild ids to monitor, all guilds if not set"`
	} `group:"discord" namespace:"discord" env-namespace:"DISCORD"`

	Mode                string        `long:"mode" env:"MODE" default:"shadow" description:"shadow (log only) or active (remove spam)"`
	MonitorCount        int           `long:"monitor-count" env:"MONITOR_COUNT" default:"3" description:"number of first messages per user to check"`
	HistoryRetention    time.Duration `long:"history-retention" env:"HISTORY_RETENTION" default:"5m" description:"how long messages are kept for cross-channel comparison"`
	SimilarityThreshold float64       `long:"similarity-threshold" env:"SIMILARITY_THRESHOLD" default:"0.85" description:"min similarity of cross-channel repeat, 0.0-1.0"`
	RecentJoin          time.Duration `long:"recent-join" env:"RECENT_JOIN" default:"10m" description:"join age of a recent joiner"`
	NewAccountAge       time.Duration `long:"new-account-age" env:"NEW_ACCOUNT_AGE" default:"168h" description:"account age of a new account"`
	ScoreThreshold      int           `long:"score-threshold" env:"SCORE_THRESHOLD" default:"8" description:"min score to consider a message spam"`
	InviteDomains       []string      `long:"invite-domain" env:"INVITE_DOMAIN" env-delim:"," default:"discord.gg/" default:"discord.com/invite/" default:"discordapp.com/invite/" description:"invite link markers"`
	RemovalTimeout      time.Duration `long:"removal-timeout" env:"REMOVAL_TIMEOUT" default:"10s" description:"timeout of a single message removal"`
	RemovalConcurrency  int           `long:"removal-concurrency" env:"REMOVAL_CONCURRENCY" default:"4" description:"max parallel removals of prior messages"`
	RecordsSize         int           `long:"records" env:"RECORDS" default:"100" description:"number of recent audit records kept in memory"`

	Weight struct {
		FirstMessage int `long:"first-message" env:"FIRST_MESSAGE" default:"2" description:"weight of the first message"`
		URL          int `long:"url" env:"URL" default:"3" description:"weight of url presence"`
		Invite       int `long:"invite" env:"INVITE" default:"3" description:"weight of invite link presence"`
		CrossChannel int `long:"cross-channel" env:"CROSS_CHANNEL" default:"5" description:"weight of cross-channel repeat"`
		RecentJoin   int `long:"recent-join" env:"RECENT_JOIN" default:"0" description:"weight of recent join"`
		NewAccount   int `long:"new-account" env:"NEW_ACCOUNT" default:"0" description:"weight of new account"`
	} `group:"weight" namespace:"weight" env-namespace:"WEIGHT"`

	Audit struct {
		File       string `long:"file" env:"FILE" default:"data/logs.jsonl" description:"audit log file, disabled if empty"`
		MaxSize    string `long:"max-size" env:"MAX_SIZE" default:"100M" description:"maximum size before it gets rotated"`
		MaxBackups int    `long:"max-backups" env:"MAX_BACKUPS" default:"10" description:"maximum number of old audit files to retain"`
		DB         string `long:"db" env:"DB" description:"audit database url, sqlite file or postgres://, disabled if empty"`
		GID        string `long:"gid" env:"GID" default:"dc-spam" description:"group id of audit records in a shared database"`
	} `group:"audit" namespace:"audit" env-namespace:"AUDIT"`

	Server struct {
		Enabled    bool   `long:"enabled" env:"ENABLED" description:"enable web api server"`
		ListenAddr string `long:"listen" env:"LISTEN" default:":8080" description:"listen address"`
		AuthPasswd string `long:"auth" env:"AUTH" default:"" description:"basic auth password for user 'dc-spam'"`
	} `group:"server" namespace:"server" env-namespace:"SERVER"`

	Dbg bool `long:"dbg" env:"DEBUG" description:"debug mode"`
}

var revision = "local"

func main() {
	fmt.Printf("dc-spam %s\n", revision)
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[WARN] can't load .env file: %v", err)
	}

	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		if err.(*flags.Error).Type != flags.ErrHelp {
			log.Printf("[ERROR] cli error: %v", err)
		}
		os.Exit(2)
	}

	setupLog(opts.Dbg, opts.Discord.Token, opts.Server.AuthPasswd)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// catch signal and invoke graceful termination
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		log.Printf("[WARN] interrupt signal")
		cancel()
	}()

	if err := execute(ctx, opts); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

func execute(ctx context.Context, opts options) error {
	cfg, err := makeEngineConfig(opts)
	if err != nil {
		return err
	}
	if cfg.Mode == dcspam.ModeShadow {
		log.Print("[WARN] shadow mode, spam is logged but not removed")
	}

	m := metrics.New()
	auditLog, err := makeAuditLog(ctx, opts)
	if err != nil {
		return fmt.Errorf("can't make audit storage: %w", err)
	}
	wr, err := makeAuditWriter(opts)
	if err != nil {
		return fmt.Errorf("can't make audit writer: %w", err)
	}
	defer wr.Close()

	auditor := &auditSinks{ctx: ctx, wr: wr, failed: m.AuditErrors}
	if auditLog != nil {
		auditor.store = auditLog
	}

	activity := dcspam.NewActivity(cfg.HistoryRetention)
	detector := dcspam.NewDetector(cfg, activity).WithAuditor(auditor)

	listener := events.NewDiscordListener(opts.Discord.Token, detector)
	listener.Guilds = opts.Discord.Guilds
	listener.Observer = m
	detector.WithRemover(listener.Remover())

	go pruneHistory(ctx, activity, m, cfg.HistoryRetention)

	if opts.Server.Enabled {
		srvCfg := webapi.Config{Version: revision, ListenAddr: opts.Server.ListenAddr, Detector: detector,
			Engine: cfg, Activity: activity, Metrics: m.Handler(), AuthPasswd: opts.Server.AuthPasswd}
		if auditLog != nil {
			srvCfg.AuditReader = auditLog
		}
		srv := webapi.NewServer(srvCfg)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("[ERROR] web api server failed: %v", err)
			}
		}()
	}

	if err := listener.Do(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("discord listener failed: %w", err)
	}
	return nil
}

// makeEngineConfig converts cli options to detector config and validates it
func makeEngineConfig(opts options) (dcspam.Config, error) {
	mode, err := dcspam.ParseMode(opts.Mode)
	if err != nil {
		return dcspam.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	res := dcspam.Config{
		Mode:                mode,
		MonitorCount:        opts.MonitorCount,
		HistoryRetention:    opts.HistoryRetention,
		SimilarityThreshold: opts.SimilarityThreshold,
		RecentJoin:          opts.RecentJoin,
		NewAccountAge:       opts.NewAccountAge,
		ScoreThreshold:      opts.ScoreThreshold,
		Weights: dcspam.Weights{
			FirstMessage: opts.Weight.FirstMessage,
			URL:          opts.Weight.URL,
			Invite:       opts.Weight.Invite,
			CrossChannel: opts.Weight.CrossChannel,
			RecentJoin:   opts.Weight.RecentJoin,
			NewAccount:   opts.Weight.NewAccount,
		},
		InviteDomains:      opts.InviteDomains,
		RemovalConcurrency: opts.RemovalConcurrency,
		RemovalTimeout:     opts.RemovalTimeout,
		RecordsSize:        opts.RecordsSize,
	}
	if err := res.Validate(); err != nil {
		return dcspam.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	log.Printf("[DEBUG] engine config: %+v", res)
	return res, nil
}

// makeAuditLog opens audit database if configured, returns nil otherwise
func makeAuditLog(ctx context.Context, opts options) (*storage.AuditLog, error) {
	if opts.Audit.DB == "" {
		return nil, nil
	}
	db, err := engine.New(ctx, opts.Audit.DB, opts.Audit.GID)
	if err != nil {
		return nil, fmt.Errorf("can't connect to audit database: %w", err)
	}
	res, err := storage.NewAuditLog(ctx, db)
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] audit database enabled, %s", db.Type())
	return res, nil
}

// makeAuditWriter creates writer for json lines audit records
// it parses options and makes lumberjack logger with rotation
func makeAuditWriter(opts options) (io.WriteCloser, error) {
	if opts.Audit.File == "" {
		log.Printf("[WARN] audit file disabled")
		return nopWriteCloser{io.Discard}, nil
	}

	sizeParse := func(inp string) (uint64, error) {
		if inp == "" {
			return 0, errors.New("empty value")
		}
		for i, sfx := range []string{"k", "m", "g", "t"} {
			if strings.HasSuffix(inp, strings.ToUpper(sfx)) || strings.HasSuffix(inp, strings.ToLower(sfx)) {
				val, err := strconv.Atoi(inp[:len(inp)-1])
				if err != nil {
					return 0, fmt.Errorf("can't parse %s: %w", inp, err)
				}
				return uint64(float64(val) * math.Pow(float64(1024), float64(i+1))), nil
			}
		}
		return strconv.ParseUint(inp, 10, 64)
	}

	maxSize, err := sizeParse(opts.Audit.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("can't parse audit max size: %w", err)
	}
	maxSize /= 1048576

	log.Printf("[INFO] audit file %s, max size %dM", opts.Audit.File, maxSize)
	return &lumberjack.Logger{
		Filename:   opts.Audit.File,
		MaxSize:    int(max(1, maxSize)), // in MB
		MaxBackups: opts.Audit.MaxBackups,
		Compress:   true,
		LocalTime:  true,
	}, nil
}

// auditStore is a persistent audit storage
type auditStore interface {
	Write(ctx context.Context, rec spamcheck.Record) error
}

// auditSinks sends audit records to json lines writer and optional audit store.
// Failures are logged and counted, never returned to the detector.
type auditSinks struct {
	ctx    context.Context
	wr     io.Writer
	store  auditStore
	failed interface{ Inc() } // failed writes counter, optional

	mu sync.Mutex
}

// Emit writes the record to all sinks
func (a *auditSinks) Emit(rec spamcheck.Record) {
	if err := a.write(rec); err != nil {
		log.Printf("[WARN] can't write audit record: %v", err)
		if a.failed != nil {
			a.failed.Inc()
		}
	}
}

func (a *auditSinks) write(rec spamcheck.Record) error {
	var errs *multierror.Error
	if a.wr != nil {
		line, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("can't marshal audit record: %w", err)
		}
		a.mu.Lock()
		_, err = a.wr.Write(append(line, '\n'))
		a.mu.Unlock()
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("audit file: %w", err))
		}
	}
	if a.store != nil {
		ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
		defer cancel()
		if err := a.store.Write(ctx, rec); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("audit store: %w", err))
		}
	}
	return errs.ErrorOrNil()
}

// pruneHistory discards expired history entries every interval and updates activity metrics
func pruneHistory(ctx context.Context, activity *dcspam.Activity, m *metrics.Metrics, interval time.Duration) {
	log.Printf("[DEBUG] prune history every %v", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[DEBUG] prune history stopped")
			return
		case <-ticker.C:
			removed := activity.Prune(time.Now())
			stats := activity.Stats()
			m.Pruned.Add(float64(removed))
			m.Users.Set(float64(stats.Users))
			if removed > 0 {
				log.Printf("[DEBUG] pruned %d history entries, %+v", removed, stats)
			}
		}
	}
}

type nopWriteCloser struct{ io.Writer }

func (n nopWriteCloser) Close() error { return nil }

func setupLog(dbg bool, secrets ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	var nonEmpty []string
	for _, s := range secrets {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) > 0 {
		logOpts = append(logOpts, lgr.Secret(nonEmpty...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
