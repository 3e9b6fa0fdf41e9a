package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/ReelPipe/internal/api"
	"github.com/BTreeMap/ReelPipe/internal/flow"
	"github.com/BTreeMap/ReelPipe/internal/genai"
	"github.com/BTreeMap/ReelPipe/internal/lockfile"
	"github.com/BTreeMap/ReelPipe/internal/messaging"
	"github.com/BTreeMap/ReelPipe/internal/scheduler"
	"github.com/BTreeMap/ReelPipe/internal/script"
	"github.com/BTreeMap/ReelPipe/internal/session"
	"github.com/BTreeMap/ReelPipe/internal/store"
	"github.com/BTreeMap/ReelPipe/internal/submission"
	"github.com/BTreeMap/ReelPipe/internal/twiliowhatsapp"
	"github.com/BTreeMap/ReelPipe/internal/util"
	"github.com/BTreeMap/ReelPipe/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ReelPipe state data
	DefaultStateDir = "/var/lib/reelpipe"
	// DefaultAppDBFileName is the default SQLite database for submissions and the outbox
	DefaultAppDBFileName = "reelpipe.db"
	// DefaultWhatsAppDBFileName is the default SQLite database for the whatsmeow device
	DefaultWhatsAppDBFileName = "whatsmeow.db"
	// MemoryDSN selects the in-memory store.
	MemoryDSN = "memory"
)

// Delivery backends for submission notices.
const (
	DeliveryLog      = "log"
	DeliveryTwilio   = "twilio"
	DeliveryWhatsApp = "whatsapp"
)

func main() {
	config := loadEnvironmentConfig()
	flags, err := parseCommandLineFlags(config, os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}
	initializeLogger(flags.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping ReelPipe", "state_dir", flags.StateDir, "api_addr", flags.APIAddr, "delivery", flags.Delivery)
	if err := run(ctx, flags); err != nil {
		slog.Error("ReelPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ReelPipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir     string
	DatabaseDSN  string
	WhatsAppDSN  string
	APIAddr      string
	ScriptPath   string
	SettleMS     int
	SessionTTL   time.Duration
	ReapSchedule string
	OutboxPoll   time.Duration
	NotifyTo     string
	Delivery     string
	OpenAIKey    string
	Summarize    bool
	LogLevel     string
}

// Flags is the effective configuration after command line overrides.
type Flags struct {
	Config
	QROutput    string
	NumericCode bool
}

// initializeLogger installs a text handler at the requested level.
func initializeLogger(level string) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(level)}))
	slog.SetDefault(logger)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:     os.Getenv("REELPIPE_STATE_DIR"),
		DatabaseDSN:  os.Getenv("DATABASE_URL"),
		WhatsAppDSN:  os.Getenv("WHATSAPP_DB_DSN"),
		APIAddr:      os.Getenv("API_ADDR"),
		ScriptPath:   os.Getenv("REELPIPE_SCRIPT"),
		SettleMS:     util.ParseIntEnv("REELPIPE_SETTLE_MS", -1),
		SessionTTL:   util.ParseDurationEnv("REELPIPE_SESSION_TTL", session.DefaultTTL),
		ReapSchedule: os.Getenv("REELPIPE_REAP_SCHEDULE"),
		OutboxPoll:   util.ParseDurationEnv("REELPIPE_OUTBOX_POLL", store.DefaultPollInterval),
		NotifyTo:     os.Getenv("REELPIPE_NOTIFY_TO"),
		Delivery:     strings.ToLower(os.Getenv("REELPIPE_DELIVERY")),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		Summarize:    util.ParseBoolEnv("REELPIPE_SUMMARIZE", false),
		LogLevel:     os.Getenv("REELPIPE_LOG_LEVEL"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
	}
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(config.StateDir, DefaultAppDBFileName)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = defaultWhatsAppDSN(config.StateDir)
	}
	if config.APIAddr == "" {
		config.APIAddr = api.DefaultAddr
	}
	if config.ReapSchedule == "" {
		config.ReapSchedule = session.DefaultReapSchedule
	}
	if config.Delivery == "" {
		config.Delivery = DeliveryLog
	}

	slog.Debug("environment variables loaded",
		"REELPIPE_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", os.Getenv("DATABASE_URL") != "",
		"API_ADDR", config.APIAddr,
		"REELPIPE_SCRIPT", config.ScriptPath,
		"REELPIPE_DELIVERY", config.Delivery,
		"REELPIPE_NOTIFY_TO_SET", config.NotifyTo != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"REELPIPE_SUMMARIZE", config.Summarize)
	return config
}

func defaultWhatsAppDSN(stateDir string) string {
	return "file:" + filepath.Join(stateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
}

// parseCommandLineFlags applies command line overrides to the environment
// configuration. Database paths that were derived from the state directory
// follow a -state-dir override.
func parseCommandLineFlags(config Config, args []string) (Flags, error) {
	fs := flag.NewFlagSet("ReelPipe", flag.ContinueOnError)
	f := Flags{Config: config}
	fs.StringVar(&f.StateDir, "state-dir", config.StateDir, "state directory (overrides $REELPIPE_STATE_DIR)")
	fs.StringVar(&f.DatabaseDSN, "db-dsn", config.DatabaseDSN, "SQLite path, Postgres DSN or \"memory\" (overrides $DATABASE_URL)")
	fs.StringVar(&f.WhatsAppDSN, "whatsapp-db-dsn", config.WhatsAppDSN, "whatsmeow device store DSN (overrides $WHATSAPP_DB_DSN)")
	fs.StringVar(&f.APIAddr, "api-addr", config.APIAddr, "API listen address (overrides $API_ADDR)")
	fs.StringVar(&f.ScriptPath, "script", config.ScriptPath, "YAML script path, builtin when empty (overrides $REELPIPE_SCRIPT)")
	fs.IntVar(&f.SettleMS, "settle-ms", config.SettleMS, "settle delay in milliseconds, negative keeps the script value (overrides $REELPIPE_SETTLE_MS)")
	fs.DurationVar(&f.SessionTTL, "session-ttl", config.SessionTTL, "idle session timeout (overrides $REELPIPE_SESSION_TTL)")
	fs.StringVar(&f.ReapSchedule, "reap-schedule", config.ReapSchedule, "cron schedule for idle session reaping (overrides $REELPIPE_REAP_SCHEDULE)")
	fs.StringVar(&f.NotifyTo, "notify-to", config.NotifyTo, "recipient of submission notices (overrides $REELPIPE_NOTIFY_TO)")
	fs.StringVar(&f.Delivery, "delivery", config.Delivery, "notice delivery: log, twilio or whatsapp (overrides $REELPIPE_DELIVERY)")
	fs.StringVar(&f.OpenAIKey, "openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)")
	fs.BoolVar(&f.Summarize, "summarize", config.Summarize, "prefix notices with a generated summary (overrides $REELPIPE_SUMMARIZE)")
	fs.StringVar(&f.LogLevel, "log-level", config.LogLevel, "debug, info, warn or error (overrides $REELPIPE_LOG_LEVEL)")
	fs.StringVar(&f.QROutput, "qr-output", "", "path to write the WhatsApp login QR code")
	fs.BoolVar(&f.NumericCode, "numeric-code", false, "print the WhatsApp pairing code instead of a QR code")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	if f.StateDir != config.StateDir {
		if f.DatabaseDSN == filepath.Join(config.StateDir, DefaultAppDBFileName) {
			f.DatabaseDSN = filepath.Join(f.StateDir, DefaultAppDBFileName)
		}
		if f.WhatsAppDSN == defaultWhatsAppDSN(config.StateDir) {
			f.WhatsAppDSN = defaultWhatsAppDSN(f.StateDir)
		}
		slog.Debug("Derived database paths follow the state directory", "state_dir", f.StateDir)
	}
	f.Delivery = strings.ToLower(strings.TrimSpace(f.Delivery))
	return f, nil
}

// storeDSN maps the configured DSN onto store.NewStore input.
func storeDSN(dsn string) string {
	if strings.EqualFold(strings.TrimSpace(dsn), MemoryDSN) {
		return ""
	}
	return dsn
}

// buildConfigOptions turns overrides into flow configuration options.
func buildConfigOptions(f Flags) []flow.ConfigOption {
	var opts []flow.ConfigOption
	if f.SettleMS >= 0 {
		opts = append(opts, flow.WithSettleDelay(time.Duration(f.SettleMS)*time.Millisecond))
	}
	return opts
}

// newMessagingService builds the delivery backend named by f.Delivery.
func newMessagingService(f Flags) (messaging.Service, error) {
	switch f.Delivery {
	case DeliveryLog:
		return messaging.NewLogService(), nil
	case DeliveryTwilio:
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, fmt.Errorf("twilio client: %w", err)
		}
		return messaging.NewTwilioService(client), nil
	case DeliveryWhatsApp:
		var opts []whatsapp.Option
		opts = append(opts, whatsapp.WithDBDSN(f.WhatsAppDSN))
		if f.QROutput != "" {
			opts = append(opts, whatsapp.WithQRCodeOutput(f.QROutput))
		}
		if f.NumericCode {
			opts = append(opts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(opts...)
		if err != nil {
			return nil, fmt.Errorf("whatsapp client: %w", err)
		}
		return messaging.NewWhatsAppService(client), nil
	default:
		return nil, fmt.Errorf("unknown delivery %q (want log, twilio or whatsapp)", f.Delivery)
	}
}

// buildNotifierOptions wires the optional summary generator.
func buildNotifierOptions(f Flags) []submission.NotifierOption {
	if !f.Summarize {
		return nil
	}
	client, err := genai.NewClient(genai.WithAPIKey(f.OpenAIKey))
	if err != nil {
		slog.Warn("Summaries disabled", "error", err)
		return nil
	}
	return []submission.NotifierOption{submission.WithSummarizer(client)}
}

// run wires the modules together and serves until ctx is cancelled.
func run(ctx context.Context, f Flags) error {
	lock, err := lockfile.AcquireLock(f.StateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	sc, err := script.Load(f.ScriptPath)
	if err != nil {
		return err
	}
	cfg, err := sc.Config(buildConfigOptions(f)...)
	if err != nil {
		return err
	}

	st, err := store.NewStore(storeDSN(f.DatabaseDSN))
	if err != nil {
		return err
	}
	defer st.Close()

	svc, err := newMessagingService(f)
	if err != nil {
		return err
	}
	recipient := f.NotifyTo
	if recipient == "" && f.Delivery == DeliveryLog {
		recipient = DeliveryLog
	}
	recipient, err = svc.ValidateAndCanonicalizeRecipient(recipient)
	if err != nil {
		return fmt.Errorf("notice recipient: %w", err)
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start %s delivery: %w", f.Delivery, err)
	}
	defer svc.Stop()

	timer := flow.NewSimpleTimer()
	defer timer.Stop()

	sessions := session.NewManager(cfg, timer,
		session.WithTTL(f.SessionTTL),
		session.WithFlowOptions(flow.WithSubmitter(submission.NewRecorder(st, sc.Name))),
	)
	defer sessions.Close()

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sessions.StartReaper(sched, f.ReapSchedule); err != nil {
		return err
	}

	notifier := submission.NewNotifier(svc, recipient, cfg, buildNotifierOptions(f)...)
	sender := store.NewOutboxSender(st, notifier.Deliver, f.OutboxPoll)
	if err := sender.RecoverStaleMessages(); err != nil {
		slog.Warn("Outbox recovery failed", "error", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	senderDone := make(chan struct{})
	go func() {
		defer close(senderDone)
		sender.Run(ctx)
	}()

	slog.Info("ReelPipe ready", "script", sc.Name, "description", sc.Description, "source", sc.Source, "scenes", len(cfg.Scenes()), "steps", len(cfg.Steps()))
	srv := api.NewServer(sessions, st, api.WithAddr(f.APIAddr))
	err = srv.Run(ctx)
	cancel()
	<-senderDone
	return err
}
