// Package server runs the long-lived components of the powers server and
// shuts them down in order on a signal.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// DefaultFinalizeTimeout bounds the AfterStop hooks.
const DefaultFinalizeTimeout = 10 * time.Second

// Service represents a long-running component that can be started and stopped.
type Service interface {
	// Start begins the service. It should block until the service is stopped
	// or an error occurs.
	Start() error
	// Stop gracefully stops the service.
	Stop()
}

// FuncService adapts a start/stop function pair into the Service interface.
type FuncService struct {
	StartFn func() error
	StopFn  func()
}

// Start calls the underlying start function.
func (f *FuncService) Start() error { return f.StartFn() }

// Stop calls the underlying stop function.
func (f *FuncService) Stop() { f.StopFn() }

// Finalizer runs once every service has stopped, e.g. the final flush of
// persisted selections.
type Finalizer func(ctx context.Context) error

// Lifecycle manages the startup and shutdown of multiple services.
// Services are started in order and stopped in reverse order; finalizers run
// after the last service stopped.
type Lifecycle struct {
	logger     *zap.Logger
	timeout    time.Duration
	mu         sync.Mutex
	services   []namedService
	finalizers []namedFinalizer
}

type namedService struct {
	name    string
	service Service
}

type namedFinalizer struct {
	name string
	fn   Finalizer
}

// NewLifecycle creates a new Lifecycle manager.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		logger:  logger,
		timeout: DefaultFinalizeTimeout,
	}
}

// Add registers a named service for lifecycle management.
// Services are started in the order they are added.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, namedService{name: name, service: svc})
}

// AfterStop registers fn to run after every service stopped. Finalizers run
// in registration order and share one DefaultFinalizeTimeout budget.
func (l *Lifecycle) AfterStop(name string, fn Finalizer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finalizers = append(l.finalizers, namedFinalizer{name: name, fn: fn})
}

// Run starts all services and blocks until a termination signal is received
// (SIGINT or SIGTERM), a service fails or ctx is cancelled. Services are then
// stopped in reverse order and the finalizers run.
//
// Postcondition: All services are stopped when this method returns. The
// error joins the first service failure with any finalizer errors.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	services := append([]namedService(nil), l.services...)
	finalizers := append([]namedFinalizer(nil), l.finalizers...)
	l.mu.Unlock()

	errCh := make(chan error, len(services))
	for _, ns := range services {
		go func() {
			l.logger.Info("starting service", zap.String("service", ns.name))
			svcStart := time.Now()
			if err := ns.service.Start(); err != nil {
				l.logger.Error("service failed",
					zap.String("service", ns.name),
					zap.Error(err),
					zap.Duration("uptime", time.Since(svcStart)),
				)
				errCh <- fmt.Errorf("service %s: %w", ns.name, err)
				cancel()
			}
		}()
	}

	l.logger.Info("all services started",
		zap.Int("count", len(services)),
		zap.Duration("startup", time.Since(start)),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		l.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case runErr = <-errCh:
		l.logger.Error("service error, shutting down", zap.Error(runErr))
	case <-ctx.Done():
		l.logger.Info("context cancelled, shutting down")
	}
	if runErr == nil {
		select {
		case runErr = <-errCh:
		default:
		}
	}

	stopServices(l.logger, services)
	finErr := l.finalize(finalizers)

	l.logger.Info("shutdown complete", zap.Duration("total_uptime", time.Since(start)))
	return errors.Join(runErr, finErr)
}

func stopServices(logger *zap.Logger, services []namedService) {
	shutdownStart := time.Now()
	for i := len(services) - 1; i >= 0; i-- {
		ns := services[i]
		svcStart := time.Now()
		logger.Info("stopping service", zap.String("service", ns.name))
		ns.service.Stop()
		logger.Info("service stopped",
			zap.String("service", ns.name),
			zap.Duration("elapsed", time.Since(svcStart)),
		)
	}
	logger.Info("all services stopped", zap.Duration("shutdown_elapsed", time.Since(shutdownStart)))
}

func (l *Lifecycle) finalize(finalizers []namedFinalizer) error {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	var errs []error
	for _, nf := range finalizers {
		if err := nf.fn(ctx); err != nil {
			l.logger.Error("finalizer failed", zap.String("finalizer", nf.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("finalizer %s: %w", nf.name, err))
		}
	}
	return errors.Join(errs...)
}
