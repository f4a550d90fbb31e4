// Package serverlite runs lightweight, in-process cluster nodes for E2E testing.
// Every node owns a key manager and serves the full HTTP API on a loopback
// port; nodes built over the same repository behave like members of one cluster.
package serverlite

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/turtacn/clusterkeys/internal/application/keys"
	"github.com/turtacn/clusterkeys/internal/config"
	"github.com/turtacn/clusterkeys/internal/domain/repository"
	"github.com/turtacn/clusterkeys/internal/domain/service"
	"github.com/turtacn/clusterkeys/internal/infrastructure/kms"
	"github.com/turtacn/clusterkeys/internal/infrastructure/monitoring"
	httpapi "github.com/turtacn/clusterkeys/internal/interfaces/http"
	"github.com/turtacn/clusterkeys/internal/interfaces/http/handlers"
	"github.com/turtacn/clusterkeys/internal/interfaces/http/middleware"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

// Options configures a node.
type Options struct {
	NodeID            string
	Purpose           string
	RotationInterval  time.Duration
	GenerationEnabled bool
	AdminSecret       string
	Clock             *keys.VectorClock
	Source            service.KeyMaterialSource
	Publisher         service.KeyEventPublisher
	Logger            logger.Logger
}

// Node is one in-process cluster member.
type Node struct {
	Manager  *keys.Manager
	Switches *keys.Switches
	Clock    *keys.VectorClock
	Metrics  *monitoring.Metrics
	URL      string

	opts   Options
	router *httpapi.Router
	lis    net.Listener
	done   chan error
}

// NewNode builds a node over repo. Nodes that share repo share their keys.
func NewNode(repo repository.KeyRepository, opts Options) (*Node, error) {
	if opts.Purpose == "" {
		opts.Purpose = "HMAC"
	}
	if opts.RotationInterval <= 0 {
		opts.RotationInterval = time.Hour
	}
	if opts.Clock == nil {
		opts.Clock = keys.NewVectorClock(keys.WithWallClock(time.Now))
	}
	if opts.Source == nil {
		opts.Source = kms.NewRandomSource(0)
	}
	if opts.Publisher == nil {
		opts.Publisher = service.NoopKeyEventPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoopLogger()
	}
	log := opts.Logger.WithFields(logger.String("node_id", opts.NodeID))

	switches := keys.NewSwitches()
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	mgr, err := keys.NewManager(keys.ManagerConfig{
		Purpose:               opts.Purpose,
		RotationInterval:      opts.RotationInterval,
		ValidationWaitTimeout: 2 * time.Second,
		NodeID:                opts.NodeID,
	}, repo, opts.Source, opts.Clock,
		keys.WithLogger(log),
		keys.WithMetrics(metrics),
		keys.WithPolicy(switches),
		keys.WithEventPublisher(opts.Publisher),
	)
	if err != nil {
		return nil, err
	}
	mgr.EnableKeyGenerator(opts.GenerationEnabled)

	var checkers map[string]repository.HealthChecker
	if hc, ok := repo.(repository.HealthChecker); ok {
		checkers = map[string]repository.HealthChecker{"store": hc}
	}
	router := httpapi.NewRouter(
		config.ServerConfig{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second},
		config.AdminConfig{JWTSecret: opts.AdminSecret},
		log,
		handlers.NewKeyHandler(mgr, switches, opts.Clock, log),
		handlers.NewHealthHandler(mgr, checkers, log),
		metrics,
		reg,
	)

	return &Node{
		Manager:  mgr,
		Switches: switches,
		Clock:    opts.Clock,
		Metrics:  metrics,
		opts:     opts,
		router:   router,
	}, nil
}

// Start begins monitoring and serves HTTP on a free loopback port.
func (n *Node) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	if err := n.Manager.StartMonitoring(ctx); err != nil {
		_ = lis.Close()
		return err
	}
	n.lis = lis
	n.URL = "http://" + lis.Addr().String()
	n.done = make(chan error, 1)
	go func() {
		n.done <- n.router.Serve(lis)
	}()
	return nil
}

// Stop shuts the HTTP server down and stops monitoring.
func (n *Node) Stop(ctx context.Context) error {
	n.Manager.StopMonitoring()
	if n.done == nil {
		return nil
	}
	if err := n.router.Stop(ctx); err != nil {
		return err
	}
	// Serve may not have picked the listener up yet.
	_ = n.lis.Close()
	err := <-n.done
	n.done = nil
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// AdminToken mints a bearer token accepted by this node's admin routes.
func (n *Node) AdminToken() (string, error) {
	return middleware.NewAdminToken([]byte(n.opts.AdminSecret), "e2e", "", time.Minute)
}
