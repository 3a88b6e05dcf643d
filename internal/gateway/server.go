package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wudi/docgateway/internal/config"
	"github.com/wudi/docgateway/internal/logging"
	"go.uber.org/zap"
)

const maxReloadHistory = 10

// Server wraps the gateway with HTTP server functionality
type Server struct {
	gateway    *Gateway
	httpServer *http.Server
	listener   net.Listener
	configPath string
	watcher    *config.Watcher

	mu            sync.Mutex
	reloadHistory []ReloadResult
}

// NewServer creates a documentation server.
// configPath is the path to the YAML config file (used for reload).
func NewServer(cfg *config.Config, configPath string, opts ...Option) (*Server, error) {
	gw, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		gateway:    gw,
		configPath: configPath,
		httpServer: &http.Server{
			Addr:         cfg.Server.Address,
			Handler:      gw.Handler(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	if cfg.Server.WatchConfig && configPath != "" {
		w, err := config.NewWatcher(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to watch config: %w", err)
		}
		w.OnChange(func(newCfg *config.Config) {
			s.apply(newCfg)
		})
		s.watcher = w
	}

	return s, nil
}

// Gateway returns the underlying gateway.
func (s *Server) Gateway() *Gateway {
	return s.gateway
}

// Addr returns the bound listen address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.httpServer.Addr
	}
	return s.listener.Addr().String()
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}

	if s.watcher != nil {
		if err := s.watcher.Start(); err != nil {
			ln.Close()
			return fmt.Errorf("failed to start config watcher: %w", err)
		}
	}

	s.listener = ln
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			logging.Error("HTTP server error", zap.Error(err))
		}
	}()

	logging.Info("Serving documentation",
		zap.String("address", s.Addr()),
		zap.String("path_prefix", s.gateway.Config().Swagger.PathPrefix),
	)
	return nil
}

// Run starts the server and handles graceful shutdown.
// SIGHUP triggers a config reload; SIGINT/SIGTERM triggers shutdown.
func (s *Server) Run() error {
	if err := s.Start(); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(quit)

	for sig := range quit {
		switch sig {
		case syscall.SIGHUP:
			s.ReloadConfig()
		default:
			logging.Info("Shutting down gracefully...")
			return s.Shutdown(s.gateway.Config().Server.ShutdownTimeout)
		}
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			logging.Warn("Config watcher stop error", zap.Error(err))
		}
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logging.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	if err := s.gateway.Close(); err != nil {
		logging.Error("Gateway close error", zap.Error(err))
		return err
	}

	logging.Info("Server shutdown complete")
	return nil
}

// ReloadConfig loads a new config from the config path and performs a hot reload.
func (s *Server) ReloadConfig() ReloadResult {
	if s.configPath == "" {
		return s.record(ReloadResult{
			Timestamp: time.Now(),
			Error:     "no config path configured",
		})
	}

	newCfg, err := config.NewLoader().Load(s.configPath)
	if err != nil {
		s.gateway.metrics.RecordReload(false)
		return s.record(ReloadResult{
			Timestamp: time.Now(),
			Error:     fmt.Sprintf("config load failed: %v", err),
		})
	}
	return s.apply(newCfg)
}

// ReloadHistory returns the most recent reload results, oldest first.
func (s *Server) ReloadHistory() []ReloadResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ReloadResult, len(s.reloadHistory))
	copy(out, s.reloadHistory)
	return out
}

func (s *Server) apply(newCfg *config.Config) ReloadResult {
	return s.record(s.gateway.Reload(newCfg))
}

func (s *Server) record(result ReloadResult) ReloadResult {
	if result.Success {
		logging.Info("Config reloaded successfully",
			zap.Strings("changes", result.Changes),
		)
	} else {
		logging.Error("Config reload failed",
			zap.String("error", result.Error),
		)
	}

	s.mu.Lock()
	s.reloadHistory = append(s.reloadHistory, result)
	if len(s.reloadHistory) > maxReloadHistory {
		s.reloadHistory = s.reloadHistory[len(s.reloadHistory)-maxReloadHistory:]
	}
	s.mu.Unlock()
	return result
}
