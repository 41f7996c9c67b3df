package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/edvin/coordinator/internal/alerts"
	"github.com/edvin/coordinator/internal/cluster"
	"github.com/edvin/coordinator/internal/config"
	"github.com/edvin/coordinator/internal/coordinator"
	"github.com/edvin/coordinator/internal/logging"
	"github.com/edvin/coordinator/internal/metrics"
	"github.com/edvin/coordinator/internal/model"
	"github.com/edvin/coordinator/internal/proxy"
	"github.com/edvin/coordinator/internal/relation"
	"github.com/edvin/coordinator/internal/server"
	"github.com/edvin/coordinator/internal/sources"
)

// Relation endpoint names served by the substrate API.
const (
	endpointCluster         = "cluster"
	endpointS3              = "s3"
	endpointLogging         = "logging"
	endpointCharmTracing    = "charm-tracing"
	endpointWorkloadTracing = "workload-tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No config, no logger yet: fall back to a bare one.
		fallback := logging.NewLogger(&config.Config{ServiceName: "coordinator"})
		fallback.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.NewLogger(cfg)

	roles, err := loadRolesConfig(cfg.RolesConfigPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.RolesConfigPath).Msg("failed to load roles config")
	}

	store := relation.NewMemoryStore()
	view := cluster.NewView(logger, store, endpointCluster, roles)

	s3Source := sources.NewObjectStorage(logger, store, endpointS3)
	logSource := sources.NewLogging(logger, store, endpointLogging)
	charmTracing := sources.NewTracing(logger, store, endpointCharmTracing)
	workloadTracing := sources.NewTracing(logger, store, endpointWorkloadTracing)
	tlsSource := sources.NewTLS(&sources.FileCertProvider{
		ServerCertPath: cfg.TLSServerCertPath,
		PrivateKeyPath: cfg.TLSPrivateKeyPath,
		CACertPath:     cfg.TLSCACertPath,
		Label:          cfg.TLSSecretLabel,
	})

	proxyMgr := proxy.NewManager(logger, proxy.Config{
		ConfigDir:     cfg.NginxConfigDir,
		CertDir:       cfg.CertDir,
		SupervisorDir: cfg.SupervisorDir,
		ListenPort:    cfg.NginxListenPort,
		ExporterPort:  cfg.NginxExporterPort,
	})

	coord, err := coordinator.New(coordinator.Options{
		Logger:        logger,
		Roles:         roles,
		Cluster:       view,
		ObjectStorage: s3Source,
		TLS:           tlsSource,
		Logging:       logSource,
		Proxy:         proxyMgr,
		Leadership:    coordinator.StaticLeadership(cfg.Leader),
		WorkersConfig: workersConfig(s3Source),
		ProxyConfig:   proxyConfig(proxyMgr, view, roles, cfg),
		TracingReceivers: func() map[string]string {
			return workloadTracing.Receivers()
		},
		Alerts: alerts.NewRenderer(
			logger, cfg.WorkerRulesDir, cfg.ProxyRulesDir, cfg.ConsolidatedRulesDir,
		),
		WorkerMetricsPort: cfg.WorkerMetricsPort,
		ProxyExporterPort: cfg.NginxExporterPort,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("coordinator construction failed")
	}

	logStartupState(logger, coord, charmTracing)
	probeObjectStorage(logger, s3Source)

	loop := coordinator.NewLoop(logger, coord, 64)

	substrate := server.NewServer(logger, store, coord, loop.Notify,
		map[string]coordinator.NotificationKind{
			endpointCluster:         coordinator.ClusterChanged,
			endpointS3:              coordinator.S3Changed,
			endpointLogging:         coordinator.LoggingChanged,
			endpointCharmTracing:    coordinator.TracingChanged,
			endpointWorkloadTracing: coordinator.TracingChanged,
		})

	httpServer := &http.Server{Addr: cfg.HTTPListenAddr, Handler: substrate.Handler()}
	metricsServer := metrics.NewServer(cfg.MetricsListenAddr, func() map[string]bool {
		return map[string]bool{
			"has_workers": coord.Snapshot().HasWorkers,
			"coherent":    coord.Verdict().Coherent,
			"s3_ready":    coord.S3Ready(),
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting substrate API")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("addr", cfg.MetricsListenAddr).Msg("starting metrics server")
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := loop.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
		metricsServer.Shutdown(shutdownCtx)
		return nil
	})

	// Reconcile once at startup so a restart converges without waiting for
	// an inbound notification.
	loop.Notify(coordinator.ConfigChanged)

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("coordinator exited with error")
	}
	logger.Info().Msg("coordinator stopped")
}

func loadRolesConfig(path string) (*model.RolesConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var roles model.RolesConfig
	if err := yaml.Unmarshal(raw, &roles); err != nil {
		return nil, err
	}
	return &roles, nil
}

// logStartupState reproduces the operator-facing warnings for a cluster
// that cannot yet handle events.
func logStartupState(logger zerolog.Logger, coord *coordinator.Coordinator, charmTracing *sources.Tracing) {
	snapshot := coord.Snapshot()
	switch {
	case !snapshot.HasWorkers:
		logger.Warn().Msg("incoherent deployment: missing relation to workers; " +
			"the coordinator will publish nothing until workers join")
	case !coord.Verdict().Coherent:
		logger.Error().
			Strs("missing_roles", coord.Verdict().MissingRoles).
			Msg("incoherent deployment: required roles are not covered")
	case !coord.S3Ready():
		logger.Error().Msg("incoherent deployment: missing s3 integration")
	}

	if receivers := charmTracing.Receivers(); len(receivers) > 0 {
		logger.Info().Interface("receivers", receivers).Msg("coordinator trace receivers configured")
	}
}

// probeObjectStorage checks bucket reachability once at startup. Best
// effort: a failure is logged, never fatal.
func probeObjectStorage(logger zerolog.Logger, s3Source *sources.ObjectStorage) {
	if !s3Source.Available() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3Source.ProbeBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("object storage bucket probe failed")
		return
	}
	logger.Info().Msg("object storage bucket reachable")
}
