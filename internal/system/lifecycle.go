package system

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/KevinKickass/OpenVNA/internal/api/rest"
	"github.com/KevinKickass/OpenVNA/internal/api/streaming"
	"github.com/KevinKickass/OpenVNA/internal/api/websocket"
	"github.com/KevinKickass/OpenVNA/internal/config"
	"github.com/KevinKickass/OpenVNA/internal/devices"
	"github.com/KevinKickass/OpenVNA/internal/interfaces"
	"github.com/KevinKickass/OpenVNA/internal/monitor"
	"github.com/KevinKickass/OpenVNA/internal/profiles"
	"github.com/KevinKickass/OpenVNA/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

var _ interfaces.Backend = (*LifecycleManager)(nil)

// LifecycleManager starts and stops the service in order: storage, the
// websocket hub, instrument sessions, the REST API, then gRPC.
type LifecycleManager struct {
	config   *config.Config
	logger   *zap.Logger
	loader   *profiles.Loader
	registry *prometheus.Registry
	metrics  *monitor.Metrics
	sessions *devices.Manager
	hub      *websocket.Hub
	streamer *streaming.EventStreamer
	store    storage.Store
	postgres *storage.PostgresClient

	restServer *rest.Server
	grpcServer *grpc.Server
	stopHub    context.CancelFunc

	stateMu      sync.RWMutex
	currentState SystemState
	lastError    error

	shutdownOnce sync.Once
	stopped      chan struct{}
}

func NewLifecycleManager(cfg *config.Config, logger *zap.Logger) (*LifecycleManager, error) {
	loader, err := profiles.NewLoader(cfg.Profiles.SearchPaths)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile loader: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitor.New(registry)
	hub := websocket.NewHub(logger)
	streamer := streaming.NewEventStreamer(logger)

	lm := &LifecycleManager{
		config:       cfg,
		logger:       logger,
		loader:       loader,
		registry:     registry,
		metrics:      metrics,
		hub:          hub,
		streamer:     streamer,
		currentState: StateInitializing,
		stopped:      make(chan struct{}),
		sessions: devices.NewManager(loader, logger,
			devices.WithMetrics(metrics),
			devices.WithPublisher(devices.Fanout{hub, streamer})),
	}
	return lm, nil
}

// Start brings the service up. Instruments that fail to open are logged
// and skipped; a failing REST listener is fatal.
func (lm *LifecycleManager) Start(ctx context.Context) error {
	lm.logger.Info("Starting OpenVNA",
		zap.Int("instruments", len(lm.config.Instruments)),
		zap.Strings("profiles", lm.loader.Available()))

	lm.openStorage(ctx)

	hubCtx, stopHub := context.WithCancel(context.Background())
	lm.stopHub = stopHub
	go lm.hub.Run(hubCtx)

	if err := lm.sessions.OpenAll(ctx, lm.config.Instruments); err != nil {
		lm.logger.Warn("Some instruments could not be opened", zap.Error(err))
	}

	lm.restServer = rest.NewServer(lm, lm.logger, lm.hub, lm.registry)
	if err := lm.restServer.Start(); err != nil {
		lm.setError(fmt.Errorf("failed to start REST API: %w", err))
		return err
	}

	if lm.config.Server.GRPCPort > 0 {
		if err := lm.startGRPCServer(); err != nil {
			lm.setError(fmt.Errorf("failed to start gRPC server: %w", err))
			return err
		}
	}

	if err := lm.setState(StateRunning); err != nil {
		return err
	}

	lm.logger.Info("System started successfully",
		zap.Int("http_port", lm.config.Server.HTTPPort),
		zap.Int("grpc_port", lm.config.Server.GRPCPort),
		zap.Int("open_instruments", len(lm.sessions.ListSessions())),
		zap.Bool("database", lm.postgres != nil))

	return nil
}

func (lm *LifecycleManager) startGRPCServer() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", lm.config.Server.GRPCPort))
	if err != nil {
		return err
	}

	lm.grpcServer = grpc.NewServer()
	streaming.Register(lm.grpcServer, streaming.NewInstrumentService(lm.streamer, lm.sessions, lm.logger))

	go func() {
		if err := lm.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			lm.logger.Error("gRPC server error", zap.Error(err))
		}
	}()

	lm.logger.Info("gRPC server started", zap.Int("port", lm.config.Server.GRPCPort))
	return nil
}

func (lm *LifecycleManager) openStorage(ctx context.Context) {
	if !lm.config.Database.Enabled {
		lm.store = storage.NewMemoryStore(0)
		return
	}

	pg, err := storage.NewPostgresClient(ctx, lm.config.Database)
	if err == nil {
		err = pg.EnsureSchema(ctx)
		if err != nil {
			pg.Close()
		}
	}
	if err != nil {
		lm.logger.Warn("Database unavailable, keeping measurements in memory", zap.Error(err))
		lm.store = storage.NewMemoryStore(0)
		return
	}

	lm.postgres = pg
	lm.store = pg
}

// Shutdown gracefully shuts down the system
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")

		lm.setState(StateStopping)
		shutdownErr = lm.gracefulShutdown(ctx)

		if lm.stopHub != nil {
			lm.stopHub()
		}
		if lm.postgres != nil {
			lm.postgres.Close()
		}

		lm.setState(StateStopped)
		close(lm.stopped)
	})

	return shutdownErr
}

// Done is closed once Shutdown has finished, including a shutdown
// requested over the API.
func (lm *LifecycleManager) Done() <-chan struct{} {
	return lm.stopped
}

func (lm *LifecycleManager) gracefulShutdown(ctx context.Context) error {
	var wg sync.WaitGroup
	errChan := make(chan error, 3)

	// 1. Instrument sessions; each waits for its running operation
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := lm.sessions.CloseAll(ctx); err != nil {
			errChan <- fmt.Errorf("instrument close failed: %w", err)
		}
	}()

	// 2. REST API Server graceful shutdown
	if lm.restServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := lm.restServer.Shutdown(ctx); err != nil {
				errChan <- fmt.Errorf("rest api shutdown failed: %w", err)
			}
		}()
	}

	// 3. gRPC: subscriptions end first so GracefulStop does not wait on them
	if lm.grpcServer != nil {
		lm.streamer.Close()
		wg.Add(1)
		go func() {
			defer wg.Done()
			lm.grpcServer.GracefulStop()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		close(errChan)
		var errs []error
		for err := range errChan {
			errs = append(errs, err)
		}
		if len(errs) == 0 {
			lm.logger.Info("Graceful shutdown completed")
		}
		return errors.Join(errs...)
	case <-ctx.Done():
		lm.logger.Warn("Shutdown timeout, forcing stop")
		if lm.grpcServer != nil {
			lm.grpcServer.Stop()
		}
		return fmt.Errorf("shutdown timeout exceeded: %w", ctx.Err())
	}
}

func (lm *LifecycleManager) setState(state SystemState) error {
	lm.stateMu.Lock()
	from := lm.currentState
	if err := ValidateTransition(from, state); err != nil {
		lm.stateMu.Unlock()
		lm.logger.Warn("Rejected state change", zap.Error(err))
		return err
	}
	lm.currentState = state
	lm.stateMu.Unlock()

	lm.logger.Debug("State changed",
		zap.Stringer("from", from),
		zap.Stringer("to", state))
	lm.broadcastStatus()
	return nil
}

func (lm *LifecycleManager) setError(err error) {
	lm.stateMu.Lock()
	lm.currentState = StateError
	lm.lastError = err
	lm.stateMu.Unlock()

	lm.logger.Error("System error", zap.Error(err))
	lm.broadcastStatus()
}

func (lm *LifecycleManager) State() SystemState {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()
	return lm.currentState
}

// GetCurrentStatus returns current system status (Interface implementation)
func (lm *LifecycleManager) GetCurrentStatus() interfaces.SystemStatus {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()

	status := interfaces.SystemStatus{
		State:       lm.currentState.String(),
		Instruments: len(lm.sessions.ListSessions()),
		Clients:     lm.hub.GetClientCount(),
		Database:    lm.postgres != nil,
	}
	if lm.lastError != nil {
		status.Error = lm.lastError.Error()
	}
	return status
}

func (lm *LifecycleManager) broadcastStatus() {
	status := lm.GetCurrentStatus()
	lm.hub.Broadcast(websocket.NewMessage(websocket.MessageTypeSystemStatus, status))
	lm.streamer.Publish(string(websocket.MessageTypeSystemStatus), status)
}

func (lm *LifecycleManager) Config() *config.Config {
	return lm.config
}

func (lm *LifecycleManager) Sessions() *devices.Manager {
	return lm.sessions
}

func (lm *LifecycleManager) Profiles() *profiles.Loader {
	return lm.loader
}

// Measurements is nil until Start has run.
func (lm *LifecycleManager) Measurements() storage.Store {
	return lm.store
}

// Registry holds the process and instrument collectors.
func (lm *LifecycleManager) Registry() *prometheus.Registry {
	return lm.registry
}
