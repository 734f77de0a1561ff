package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/thingy-gateway/internal/device"
	"github.com/nerrad567/thingy-gateway/internal/infrastructure/config"
	"github.com/nerrad567/thingy-gateway/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ConnectionStatus reports whether an optional backend is reachable.
// Satisfied by *mqtt.Client and *influxdb.Client.
type ConnectionStatus interface {
	IsConnected() bool
}

// DBStats exposes connection pool statistics. Satisfied by *database.DB.
type DBStats interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	Stream      config.StreamConfig
	Logger      *logging.Logger
	Registry    *device.Registry
	Setups      *device.ConfigStore
	Ingest      *device.IngestionService
	Actuators   *device.ActuatorController
	Broadcaster *device.Broadcaster
	MQTT        ConnectionStatus // optional
	InfluxDB    ConnectionStatus // optional
	DB          DBStats          // optional
	Version     string
}

// Server is the HTTP API server for Thingy Gateway.
//
// It manages the HTTP listener, routes, middleware and live LED streams.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	streamCfg   config.StreamConfig
	logger      *logging.Logger
	registry    *device.Registry
	setups      *device.ConfigStore
	ingest      *device.IngestionService
	actuators   *device.ActuatorController
	broadcaster *device.Broadcaster
	mqtt        ConnectionStatus
	influx      ConnectionStatus
	db          DBStats
	version     string
	startTime   time.Time

	// keepAlive is how often an idle SSE stream repeats its last state.
	keepAlive time.Duration

	server   *http.Server
	listener net.Listener
	hub      *Hub
	cancel   context.CancelFunc // cancels streams on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil || deps.Setups == nil || deps.Ingest == nil ||
		deps.Actuators == nil || deps.Broadcaster == nil {
		return nil, fmt.Errorf("device services are required")
	}

	s := &Server{
		cfg:         deps.Config,
		streamCfg:   deps.Stream,
		logger:      deps.Logger,
		registry:    deps.Registry,
		setups:      deps.Setups,
		ingest:      deps.Ingest,
		actuators:   deps.Actuators,
		broadcaster: deps.Broadcaster,
		mqtt:        deps.MQTT,
		influx:      deps.InfluxDB,
		db:          deps.DB,
		version:     deps.Version,
		startTime:   time.Now(),
		keepAlive:   deps.Stream.GetKeepAlive(),
		hub:         NewHub(deps.Logger),
	}

	return s, nil
}

// Start binds the listener and serves HTTP in a background goroutine.
//
// Streams are tied to an internal context that Close cancels, so
// long-lived SSE and WebSocket connections end on shutdown rather than
// holding it open.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
		BaseContext:       func(net.Listener) context.Context { return srvCtx },
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close ends all live streams and gracefully shuts down the server.
//
// It waits up to 10 seconds for in-flight requests to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
