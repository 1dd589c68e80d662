// Package app assembles the chat server: the websocket consumer and chat
// service behind the websocket URL patterns, the HTTP application, and the
// protocol dispatcher in front of both.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"golang.org/x/time/rate"

	"github.com/luciancaetano/ecochat/internal/chat"
	"github.com/luciancaetano/ecochat/internal/config"
	"github.com/luciancaetano/ecochat/internal/logging"
	"github.com/luciancaetano/ecochat/internal/routing"
	"github.com/luciancaetano/ecochat/internal/server"
	"github.com/luciancaetano/ecochat/internal/web"
	"github.com/luciancaetano/ecochat/internal/websocket"
	"github.com/luciancaetano/ecochat/router"
)

type App struct {
	cfg    *config.C
	logger *slog.Logger

	chat       *chat.Service
	consumer   *websocket.Server
	routes     *router.URLRouter
	dispatcher *router.ProtocolTypeRouter
	server     *server.Server
}

// New builds every component. Any construction failure is returned and
// nothing is left serving.
func New(cfg *config.C, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	a := &App{cfg: cfg, logger: logger}

	a.chat = chat.NewService(chat.NewPresence(), logger)
	a.consumer = websocket.New(&websocket.ServerConfig{
		RateLimitConfig:    rateLimit(cfg),
		CheckOrigin:        websocket.AllowedOrigins(cfg.AllowedOrigins),
		OnConnect:          a.chat.OnConnect,
		OnClientDisconnect: a.chat.OnDisconnect,
		UserIDParam:        cfg.UserIDParam,
		Logger:             logger,
	})
	if err := a.chat.Attach(context.Background(), a.consumer); err != nil {
		return nil, fmt.Errorf("attach chat service: %w", err)
	}

	httpApp, err := web.New(web.Config{
		Presence:       a.chat.Presence(),
		Connections:    a.consumer,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build http app: %w", err)
	}

	patterns, err := routing.Load(cfg.RoutesFile)
	if err != nil {
		return nil, err
	}
	routes, err := routing.Resolve(patterns, a.Consumers())
	if err != nil {
		return nil, err
	}
	if a.routes, err = router.NewURLRouter(routes); err != nil {
		return nil, fmt.Errorf("websocket routes: %w", err)
	}

	a.dispatcher, err = router.NewProtocolTypeRouter(map[router.ProtocolType]router.Handler{
		router.ProtocolHTTP:      router.HTTPHandler(httpApp),
		router.ProtocolWebSocket: a.routes,
	}, router.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("protocol router: %w", err)
	}

	a.server, err = server.New(server.Config{
		Addr:    cfg.Addr(),
		Handler: a.dispatcher,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func rateLimit(cfg *config.C) *websocket.RateLimitConfig {
	if !cfg.RateLimitEnabled {
		return websocket.NoRateLimit()
	}
	return &websocket.RateLimitConfig{
		MessagesPerSecond: rate.Limit(cfg.RateLimit),
		Burst:             cfg.RateBurst,
		Enabled:           true,
	}
}

// consumers names the websocket consumers a routes file may refer to.
func consumers(chat router.Handler) map[string]router.Handler {
	return map[string]router.Handler{routing.ChatConsumer: chat}
}

// Consumers returns the named consumers bound to this App's handlers.
func (a *App) Consumers() map[string]router.Handler { return consumers(a.consumer) }

// ConsumerNames lists the consumer names a routes file may use, sorted.
func ConsumerNames() []string {
	names := make([]string, 0, 1)
	for name := range consumers(nil) {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckPatterns validates patterns against ConsumerNames without building
// an App.
func CheckPatterns(patterns []routing.Pattern) error {
	return routing.Check(patterns, func(name string) bool {
		_, ok := consumers(nil)[name]
		return ok
	})
}

// Handler is the protocol dispatcher.
func (a *App) Handler() http.Handler { return a.dispatcher }

func (a *App) Routes() []router.Route { return a.routes.Routes() }

func (a *App) Addr() string { return a.server.Addr() }

func (a *App) Running() bool { return a.server.Running() }

// Run serves until ctx is done, then closes every websocket connection and
// stops the listener within the configured shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	if err := a.server.Start(ctx); err != nil {
		return err
	}
	if !a.server.Running() {
		return nil
	}
	a.logger.Info("ecochat started", "addr", a.server.Addr(), "routes", len(a.routes.Routes()))

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.consumer.Close(stopCtx); err != nil {
		a.logger.Warn("close websocket connections", "error", err)
	}
	if err := a.server.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop server: %w", err)
	}
	a.logger.Info("ecochat stopped")
	return nil
}
