package server

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"

	"board_query_cache/internal/limits"
)

type Server struct {
	Addr string

	httpServer   *http.Server
	ln           net.Listener
	limits       limits.Limits
	stoppers     []Stopper
	shutdownOnce sync.Once
	shutdownErr  error
}

type Stopper interface {
	Stop(ctx context.Context) error
}

type StopFunc func(ctx context.Context) error

func (s StopFunc) Stop(ctx context.Context) error {
	return s(ctx)
}

type Options struct {
	Limits   limits.Limits
	Stoppers []Stopper
}

// Start listens on addr and serves handler until Shutdown. Stoppers run
// after the listener closes and before in-flight requests are drained.
func Start(handler http.Handler, addr string, options Options) (*Server, error) {
	if handler == nil {
		return nil, errors.New("handler is nil")
	}
	if addr == "" {
		return nil, errors.New("no listen address configured")
	}

	limitConfig := options.Limits
	if limitConfig.MaxHeaderBytes == 0 {
		limitConfig = limits.Default()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	httpSrv := &http.Server{
		Handler:           handler,
		MaxHeaderBytes:    limitConfig.MaxHeaderBytes,
		ReadHeaderTimeout: limitConfig.ReadHeaderTimeout,
		ReadTimeout:       limitConfig.ReadTimeout,
		WriteTimeout:      limitConfig.WriteTimeout,
		IdleTimeout:       limitConfig.IdleTimeout,
	}
	go serve(httpSrv, ln)

	return &Server{
		Addr:       ln.Addr().String(),
		httpServer: httpSrv,
		ln:         ln,
		limits:     limitConfig,
		stoppers:   options.Stoppers,
	}, nil
}

func serve(server *http.Server, ln net.Listener) {
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("server error: %v", err)
	}
}

func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	return s.Shutdown()
}

func (s *Server) Shutdown() error {
	if s == nil {
		return nil
	}
	s.shutdownOnce.Do(func() {
		s.shutdownErr = s.shutdownSequence()
	})
	return s.shutdownErr
}

func (s *Server) shutdownSequence() error {
	_ = s.ln.Close()

	timeout := s.limits.ShutdownTimeout
	if timeout <= 0 {
		timeout = limits.Default().ShutdownTimeout
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), timeout)
	for _, stopper := range s.stoppers {
		if stopper == nil {
			continue
		}
		if err := stopper.Stop(stopCtx); err != nil {
			log.Printf("shutdown stopper error: %v", err)
		}
	}
	stopCancel()

	gracefulCtx, gracefulCancel := context.WithTimeout(context.Background(), timeout)
	defer gracefulCancel()
	err := s.httpServer.Shutdown(gracefulCtx)
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	_ = s.httpServer.Close()
	return err
}
