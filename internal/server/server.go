// Package server exposes the simulated EC2, EFS and STS backends over the
// same wire protocols AWS uses, so unmodified aws-sdk-go-v2 clients can talk
// to it by pointing BaseEndpoint at the listener.
//
// Routing:
//
//	POST /                      EC2 and STS query protocol (form encoded)
//	/2015-02-01/...             EFS restJson1
//	GET  /healthz               liveness
//	GET  /metrics               Prometheus exposition
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nicholasgasior/efsim/internal/apierr"
	"github.com/nicholasgasior/efsim/internal/ec2sim"
	"github.com/nicholasgasior/efsim/internal/efssim"
	"github.com/nicholasgasior/efsim/internal/identity"
	"github.com/nicholasgasior/efsim/internal/logging"
	"github.com/nicholasgasior/efsim/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// Service names used for logging, metrics and audit records.
const (
	serviceEC2 = "ec2"
	serviceEFS = "efs"
	serviceSTS = "sts"
)

// API versions of the wire protocols the server speaks.
const (
	EFSAPIVersion = "2015-02-01"
	EC2APIVersion = "2016-11-15"
	STSAPIVersion = "2011-06-15"
)

// APIVersion pairs a simulated service with the API version it answers.
type APIVersion struct {
	Service string
	Version string
}

// APIVersions lists the simulated services in a stable order.
func APIVersions() []APIVersion {
	return []APIVersion{
		{Service: serviceEFS, Version: EFSAPIVersion},
		{Service: serviceEC2, Version: EC2APIVersion},
		{Service: serviceSTS, Version: STSAPIVersion},
	}
}

// Config describes the simulated account.
type Config struct {
	Region            string
	AccountID         string
	MaxSecurityGroups int
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger records every API call on l.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) { s.calls = l }
}

// WithAuditor records every successful mutating call on a.
func WithAuditor(a logging.Auditor) Option {
	return func(s *Server) { s.audit = a }
}

// WithZap sets the process logger.
func WithZap(l *zap.Logger) Option {
	return func(s *Server) { s.log = l }
}

// Server is the simulator's HTTP front end.
type Server struct {
	cfg     Config
	ec2     *ec2sim.Backend
	efs     *efssim.Backend
	router  *gin.Engine
	calls   logging.Logger
	audit   logging.Auditor
	log     *zap.Logger
	metrics *metrics.Recorder
}

// New creates a Server with fresh backends for cfg.
func New(cfg Config, opts ...Option) *Server {
	network := ec2sim.New(cfg.Region, cfg.AccountID)
	files := efssim.New(cfg.Region, cfg.AccountID, network, efssim.Options{
		MaxSecurityGroups: cfg.MaxSecurityGroups,
	})

	s := &Server{
		cfg:   cfg,
		ec2:   network,
		efs:   files,
		calls: logging.Nop(),
		audit: logging.NopAuditor(),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = metrics.New(files.MountTargetCount)

	gin.SetMode(gin.ReleaseMode)
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.mountHandlers()
	return s
}

func (s *Server) mountHandlers() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	s.router.POST("/", s.handleQuery)
	s.mountEFSHandlers()
}

// Handler returns the HTTP handler, for use with httptest.
func (s *Server) Handler() http.Handler { return s.router }

// EC2 returns the EC2 backend.
func (s *Server) EC2() *ec2sim.Backend { return s.ec2 }

// EFS returns the EFS backend.
func (s *Server) EFS() *efssim.Backend { return s.efs }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving",
			zap.String("addr", ln.Addr().String()),
			zap.String("region", s.cfg.Region),
			zap.String("account_id", s.cfg.AccountID))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// call is one dispatched API operation.
type call struct {
	service   string
	operation string
	started   time.Time
	requestID string
	caller    identity.Owner
}

func (s *Server) begin(c *gin.Context, service, operation string) *call {
	cred, _ := identity.ParseAuthorization(c.GetHeader("Authorization"))
	return &call{
		service:   service,
		operation: operation,
		started:   time.Now(),
		requestID: identity.NewRequestID(),
		caller:    identity.CallerFor(s.cfg.AccountID, cred.AccessKeyID),
	}
}

// finish records the call. resourceID is only audited for successful
// mutating calls; pass "" for reads.
func (s *Server) finish(cl *call, resourceID string, err error) {
	d := time.Since(cl.started)
	s.calls.Log(cl.service, cl.operation, d, err)

	code := ""
	if err != nil {
		apiErr := apierr.As(err)
		code = apiErr.Code
		if apiErr.StatusCode >= http.StatusInternalServerError {
			s.log.Error("internal failure",
				zap.String("service", cl.service),
				zap.String("operation", cl.operation),
				zap.String("request_id", cl.requestID),
				zap.Error(err))
		}
	}
	s.metrics.Observe(cl.service, cl.operation, code, d)

	if err == nil && resourceID != "" {
		if aerr := s.audit.LogCall(cl.service, cl.operation, resourceID, cl.caller.ARN); aerr != nil {
			s.log.Warn("audit write failed", zap.Error(aerr))
		}
	}
}
