package internal

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/dcrodman/tether/internal/auth"
	"github.com/dcrodman/tether/internal/core"
	"github.com/dcrodman/tether/internal/core/client"
	"github.com/dcrodman/tether/internal/core/data"
	"github.com/dcrodman/tether/internal/core/debug"
	"github.com/dcrodman/tether/internal/core/redis"
	"github.com/dcrodman/tether/internal/dispatch"
	"github.com/dcrodman/tether/internal/login"
)

// Controller is the main entrypoint for the server. It's responsible for initializing
// any shared resources (such as database and logging), defining the server, and
// launching everything.
type Controller struct {
	Config *core.Config
	// Logger is created from Config when not set.
	Logger *logrus.Logger

	wg       sync.WaitGroup
	registry *prometheus.Registry
	metrics  *core.Metrics
	db       *gorm.DB
	redis    *redis.Client

	server *frontend
}

// Start sets up the shared resources and starts accepting connections. It returns
// once the server is listening; call Wait to block until ctx is cancelled and
// everything has shut down.
func (c *Controller) Start(ctx context.Context) error {
	var err error
	if c.Logger == nil {
		if c.Logger, err = core.NewLogger(c.Config); err != nil {
			return fmt.Errorf("error initializing logger: %w", err)
		}
	}

	c.registry = prometheus.NewRegistry()
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.metrics = core.NewMetrics(c.registry)

	// Start any debug utilities if we're configured to do so.
	if c.Config.Debugging.Enabled {
		debug.StartUtilities(ctx, c.Logger, c.Config.Debugging.HTTPPort, c.registry)
	}

	tokens, err := c.tokenStore()
	if err != nil {
		c.closeResources()
		return err
	}

	authenticator := &auth.Authenticator{VerifyCredentials: c.Config.Auth.VerifyCredentials}
	if c.Config.Auth.VerifyCredentials {
		c.db, err = data.Open(c.Config, c.Logger.IsLevelEnabled(logrus.DebugLevel))
		if err != nil {
			c.closeResources()
			return fmt.Errorf("error initializing database: %w", err)
		}
		authenticator.DB = c.db
	}

	clients := client.NewRegistry()
	events := dispatch.NewQueue()

	c.server = &frontend{
		Address: c.Config.ServerAddress(),
		Backend: &login.Server{
			Name:          "LOGIN",
			Config:        c.Config,
			Logger:        c.Logger,
			Metrics:       c.metrics,
			Authenticator: authenticator,
			Tokens:        tokens,
			Events:        events,
		},
		Clients: clients,
		Config:  c.Config,
		Logger:  c.Logger,
		Metrics: c.metrics,
	}
	if err := c.server.Start(ctx, &c.wg); err != nil {
		c.closeResources()
		return fmt.Errorf("error starting %s server: %w", c.server.Backend.Identifier(), err)
	}

	dispatcher := &dispatch.Dispatcher{
		Queue:        events,
		Clients:      clients,
		Logger:       c.Logger,
		Metrics:      c.metrics,
		WriteTimeout: c.Config.Server.WriteTimeout,
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		dispatcher.Run(ctx)
	}()

	return nil
}

func (c *Controller) tokenStore() (auth.TokenStore, error) {
	switch strings.ToLower(c.Config.Auth.TokenStore) {
	case "", "memory":
		return auth.NewMemoryTokenStore(), nil
	case "redis":
		rc, err := redis.NewClient(c.Config.RedisAddress())
		if err != nil {
			return nil, fmt.Errorf("error initializing token store: %w", err)
		}
		c.redis = rc
		return auth.NewRedisTokenStore(rc), nil
	default:
		return nil, fmt.Errorf("unsupported token store: %s", c.Config.Auth.TokenStore)
	}
}

// Addr returns the address the server is listening on.
func (c *Controller) Addr() net.Addr {
	return c.server.Addr()
}

// Wait blocks until every server goroutine has exited and then releases the
// shared resources.
func (c *Controller) Wait() {
	c.wg.Wait()
	c.closeResources()
	c.Logger.Info("server shut down")
}

func (c *Controller) closeResources() {
	if c.db != nil {
		if err := data.Close(c.db); err != nil {
			c.Logger.Warnf("error closing database: %v", err)
		}
		c.db = nil
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.Logger.Warnf("error closing redis: %v", err)
		}
		c.redis = nil
	}
}
