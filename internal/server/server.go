package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"investment-server/internal/config"
	"investment-server/internal/investment"
	"investment-server/internal/lobby"
	"investment-server/internal/store"
)

type Server struct {
	cfg               config.Config
	store             store.Store
	sync              *store.Synchronizer
	rooms             *Rooms
	connectionManager *ConnectionManager
	gameManager       *GameManager
	rateLimiter       *RateLimiter
	reaper            *Reaper

	persist     context.Context
	stopPersist context.CancelFunc
	persistDone chan struct{}
	running     atomic.Bool
}

// NewServer wires the room registry, connection tracking and store
// synchronizer around st. Background work starts with Run.
func NewServer(cfg config.Config, st store.Store) *Server {
	syncer := store.NewSynchronizer(st, cfg.StoreTimeout)
	rooms := lobby.NewRegistry[investment.Session]()
	connections := NewConnectionManager()
	gm := NewGameManager(rooms, syncer, connections)

	persist, stop := context.WithCancel(context.Background())

	return &Server{
		cfg:               cfg,
		store:             st,
		sync:              syncer,
		rooms:             rooms,
		connectionManager: connections,
		gameManager:       gm,
		rateLimiter:       NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		reaper:            NewReaper(gm, cfg.ReapInterval, cfg.InactivityTimeout),
		persist:           persist,
		stopPersist:       stop,
		persistDone:       make(chan struct{}),
	}
}

func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:        fmt.Sprintf(":%d", s.cfg.Port),
		Handler:     s.RegisterRoutes(),
		IdleTimeout: time.Minute,
		ReadTimeout: 10 * time.Second,
	}
}

// Run runs the store writer, the reaper and the rate limiter cleanup until ctx
// is cancelled. The store writer keeps going until Shutdown so that late
// writes still reach the store.
func (s *Server) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("server already running")
	}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(s.persistDone)
		return s.sync.Run(s.persist)
	})
	g.Go(func() error {
		return s.reaper.Run(ctx)
	})
	g.Go(func() error {
		s.rateLimiter.Run(ctx.Done())
		return nil
	})

	return g.Wait()
}

// Shutdown stops every room, writes out everything queued and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Int("rooms", s.rooms.Len()).Msg("shutting down rooms")
	s.rooms.Close()

	var errs []error
	if s.running.Load() {
		if err := s.sync.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush store: %w", err))
		}
		s.stopPersist()
		select {
		case <-s.persistDone:
		case <-ctx.Done():
		}
	} else {
		// Never started: drain what was queued before closing the store.
		s.stopPersist()
		s.sync.Run(s.persist)
	}

	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
