package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/danmuck/wabridge/internal/fanout"
	"github.com/danmuck/wabridge/internal/protocol"
	"github.com/danmuck/wabridge/internal/protocol/whatsapp"
	"github.com/danmuck/wabridge/internal/session"
	"github.com/rs/zerolog/log"
)

// Service runs the gateway as a standalone process.
type Service struct {
	cfg      ServiceConfig
	registry *session.Registry
	hub      *fanout.Hub
	server   *Server

	mu   sync.RWMutex
	addr string
}

// NewService wires the whatsmeow connector rooted at cfg.AuthDir.
func NewService(cfg ServiceConfig) *Service {
	return NewServiceWithConnector(cfg, whatsapp.NewConnector(cfg.AuthDir))
}

// NewServiceWithConnector wires an explicit protocol connector.
func NewServiceWithConnector(cfg ServiceConfig, connector protocol.Connector) *Service {
	cfg.Session = cfg.Session.WithDefaults()
	hub := fanout.NewHub(cfg.ObserverBuffer)
	registry := session.NewRegistry(connector, cfg.Session, session.WithPublisher(hub))
	return &Service{
		cfg:      cfg,
		registry: registry,
		hub:      hub,
		server:   NewServer(cfg, registry, hub),
	}
}

// Run blocks until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext blocks until ctx is done or the HTTP listener fails.
func (s *Service) RunContext(ctx context.Context) error {
	if err := s.bootstrap(ctx); err != nil {
		return err
	}
	return s.serve(ctx)
}

func (s *Service) Registry() *session.Registry {
	return s.registry
}

func (s *Service) Server() *Server {
	return s.server
}

// Addr returns the bound listen address once serving.
func (s *Service) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

func (s *Service) bootstrap(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	started := 0
	for _, identity := range s.cfg.Autostart {
		identity = strings.TrimSpace(identity)
		if identity == "" {
			continue
		}
		startCtx, cancel := context.WithTimeout(ctx, s.cfg.Session.ConnectTimeout)
		snap, err := s.registry.Start(startCtx, identity)
		cancel()
		if err != nil {
			log.Warn().Str("identity", identity).Err(err).Msg("gateway_autostart_failed")
			continue
		}
		started++
		log.Info().Str("identity", identity).Str("state", string(snap.State)).Msg("gateway_autostart")
	}

	log.Info().
		Str("node", s.cfg.NodeID).
		Str("listen", s.cfg.ListenAddr).
		Str("auth_dir", s.cfg.AuthDir).
		Str("default_identity", s.cfg.DefaultIdentity).
		Int("autostarted", started).
		Bool("token_required", s.server.validator != nil).
		Msg("gateway_bootstrap_ready")
	return nil
}

func (s *Service) serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		_ = s.registry.Close()
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	httpSrv := &http.Server{
		Handler:           s.server.HTTPRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpSrv.Serve(ln)
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("gateway_listening")

	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("gateway_shutdown")
			return s.shutdown(httpSrv)
		case err := <-serveErr:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				_ = s.registry.Close()
				s.hub.Close()
				return fmt.Errorf("http serve: %w", err)
			}
			return nil
		case <-ticker.C:
			counts := s.registry.Counts()
			log.Info().
				Str("node", s.cfg.NodeID).
				Int("connected", counts[session.StateConnected]).
				Int("pairing", counts[session.StatePairing]).
				Int("reconnecting", counts[session.StateReconnecting]).
				Int("disconnected", counts[session.StateDisconnected]+counts[session.StateLoggedOut]).
				Int("observers", s.hub.ObserverCount()).
				Msg("gateway_heartbeat")
		}
	}
}

func (s *Service) shutdown(httpSrv *http.Server) error {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultServiceConfig().ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	httpErr := httpSrv.Shutdown(ctx)
	s.hub.Close()
	regErr := s.registry.Close()
	if err := errors.Join(httpErr, regErr); err != nil {
		log.Warn().Err(err).Msg("gateway_shutdown_incomplete")
		return err
	}
	return nil
}
