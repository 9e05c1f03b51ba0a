package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/complyze/ai-proxy/internal/adapter/inbound/httpgw"
	"github.com/complyze/ai-proxy/internal/adapter/outbound/controlplane"
	"github.com/complyze/ai-proxy/internal/config"
	"github.com/complyze/ai-proxy/internal/domain/classify"
	"github.com/complyze/ai-proxy/internal/domain/pinning"
	"github.com/complyze/ai-proxy/internal/domain/policy"
	"github.com/complyze/ai-proxy/internal/domain/settings"
	"github.com/complyze/ai-proxy/internal/domain/telemetry"
)

var devMode bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the proxy",
	Long: `Start the complyze-proxy CONNECT listener.

Examples:
  complyze-proxy start
  complyze-proxy --config /path/to/complyze-proxy.yaml start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVar(&devMode, "dev", false, "enable development mode (verbose logging)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
		cfg.TraceMode = true
	}

	logLevel := parseLogLevel(cfg.Server.LogLevel)
	if cfg.TraceMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	logger.Debug("log level configured", "level", cfg.Server.LogLevel, "effective", logLevel.String())

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()

	pidPath := pidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer os.Remove(pidPath)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("complyze-proxy stopped")
	return nil
}

// run wires every component together and blocks until ctx is canceled.
// Init order follows spec.md §9: CA -> settings cache -> listener.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	caManager, err := httpgw.NewCAManager(httpgw.CAConfig{
		CertFile:      filepath.Join(cfg.CA.Dir, "ca-cert.pem"),
		KeyFile:       filepath.Join(cfg.CA.Dir, "ca-key.pem"),
		Organization:  "Complyze",
		ValidityYears: 10,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize CA: %w", err)
	}

	certCache := httpgw.NewCertCache(caManager, time.Hour, logger, cfg.CA.LeafCacheSize)

	store, err := telemetry.NewStore(telemetry.StoreConfig{
		Dir:           cfg.Telemetry.Dir,
		MaxFileSizeMB: cfg.Telemetry.MaxFileSizeMB,
		RetainFiles:   cfg.Telemetry.RetainFiles,
		CacheSize:     256,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to open telemetry store: %w", err)
	}
	defer func() { _ = store.Close() }()

	tracer, err := telemetry.NewTracer(telemetry.TracingConfig{Enabled: cfg.TraceMode})
	if err != nil {
		return fmt.Errorf("failed to init tracer: %w", err)
	}
	defer func() { _ = tracer.Close(context.Background()) }()

	metrics := telemetry.NewMetrics(nil)
	latency := telemetry.NewLatencyTracker()

	resourceMonitor := &telemetry.ResourceMonitor{
		Store:       store,
		Metrics:     metrics,
		Latency:     latency,
		Logger:      logger,
		ThresholdMB: cfg.Inspection.MaxMemoryMB,
	}
	go resourceMonitor.Run(ctx, 30*time.Second)

	snap := settings.NewSnapshot()

	deviceID := cfg.ControlPlane.DeviceID
	if deviceID == "" {
		deviceID = deviceIDFromCA(cfg.CA.Dir, logger)
	}
	cpClient := controlplane.NewClient(cfg.ControlPlane.APIBase, cfg.ControlPlane.WorkspaceID, deviceID)

	settingsInterval := parseDurationDefault(cfg.ControlPlane.SettingsPollInterval, 10*time.Second, logger)
	heartbeatInterval := parseDurationDefault(cfg.ControlPlane.HeartbeatInterval, 15*time.Second, logger)
	poller := controlplane.NewPoller(cpClient, snap, settingsInterval, heartbeatInterval, logger)

	// Seed legacy bootstrap hints as the pre-poll snapshot so the proxy
	// doesn't run on pure safety defaults before the first settings pull.
	if cfg.Bootstrap.MonitorMode != "" || cfg.Bootstrap.EnforcementMode != "" {
		initial := settings.Default()
		if cfg.Bootstrap.MonitorMode == "enforce" {
			initial.ProxyEnabled = true
		}
		if em := settings.EnforcementMode(cfg.Bootstrap.EnforcementMode); em.Valid() {
			initial.EnforcementMode = em
		}
		snap.Store(initial)
	}
	go poller.Run(ctx)

	overrideRules, err := policy.LoadOverrideRulesFile(cfg.Policy.OverrideRulesFile)
	if err != nil {
		logger.Warn("failed to load override rules file, continuing without overrides",
			"path", cfg.Policy.OverrideRulesFile, "error", err)
	}
	overrides, overrideErrs := policy.NewOverrideSet(overrideRules)
	for id, oerr := range overrideErrs {
		logger.Warn("override rule failed to compile, skipping", "rule_id", id, "error", oerr)
	}

	report := func(ctx context.Context, ev telemetry.ActivityEvent) {
		go func() {
			if err := cpClient.PostEvent(context.WithoutCancel(ctx), ev); err != nil {
				logger.Debug("control plane event post failed", "error", err)
			}
		}()
	}

	pinRegistry := pinning.NewRegistry()

	terminator := &httpgw.Terminator{
		Certs:      certCache,
		Pinning:    pinRegistry,
		Settings:   snap,
		Classifier: classify.NewEngine(),
		Overrides:  overrides,
		Forwarder:  &httpgw.Forwarder{Logger: logger},
		Store:      store,
		Metrics:    metrics,
		Tracer:     tracer,
		Report:     report,
		Logger:     logger,
		Caps: httpgw.NewInspectionSizeCaps(
			int64(cfg.Inspection.MaxInspectionSizeMB)<<20,
			int64(cfg.Inspection.MaxBodySizeMB)<<20,
		),
		StrictPinMode:      cfg.StrictPinMode,
		BulkThresholdChars: cfg.Inspection.BulkThresholdChars,
		FailOpen:           cfg.FailOpen,
		InspectionTimeout:  time.Duration(cfg.Inspection.TimeoutMS) * time.Millisecond,
		Latency:            latency,
		WorkspaceID:        cfg.ControlPlane.WorkspaceID,
	}

	tunneler := &httpgw.Tunneler{
		Logger:  logger,
		Store:   store,
		Metrics: metrics,
		Report:  report,
	}

	router := &httpgw.Router{
		Tunneler:      tunneler,
		Terminator:    terminator,
		Pinning:       pinRegistry,
		Settings:      snap,
		Store:         store,
		Metrics:       metrics,
		Logger:        logger,
		CACertPEM:     caManager.CACertPEM,
		StrictPinMode: cfg.StrictPinMode,
	}

	startEntry := telemetry.Entry{
		Kind:      telemetry.KindProxyStart,
		Timestamp: time.Now().UTC(),
		ProxyStart: &telemetry.ProxyStart{
			OS:          runtime.GOOS,
			Hostname:    hostname(),
			ProxyPort:   portFromAddr(cfg.Server.ListenAddr),
			MonitorMode: cfg.Bootstrap.MonitorMode,
			FailOpen:    cfg.FailOpen,
			Version:     Version,
		},
	}
	if err := store.Append(startEntry); err != nil {
		logger.Warn("failed to write proxy_start telemetry entry", "error", err)
	}

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("complyze-proxy listening", "addr", cfg.Server.ListenAddr, "ca_dir", cfg.CA.Dir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("listener failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseDurationDefault(s string, fallback time.Duration, logger *slog.Logger) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		logger.Warn("invalid duration, using default", "value", s, "default", fallback)
		return fallback
	}
	return d
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

func portFromAddr(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 8080
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return 8080
	}
	return port
}

// deviceIDFromCA returns a stable device identifier persisted alongside
// the CA keypair, generating one on first run (config.go's DeviceID doc
// comment).
func deviceIDFromCA(caDir string, logger *slog.Logger) string {
	path := filepath.Join(caDir, "device-id")
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}

	id := uuid.New().String()
	if err := os.MkdirAll(caDir, 0755); err != nil {
		logger.Warn("failed to create CA directory for device ID", "error", err)
		return id
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0644); err != nil {
		logger.Warn("failed to persist device ID", "error", err)
	}
	return id
}
