package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/seifgad/acadgate/internal/coauth"
	"github.com/seifgad/acadgate/internal/notify"
	"github.com/seifgad/acadgate/internal/router"
	"github.com/seifgad/acadgate/internal/server/middleware"
	"github.com/seifgad/acadgate/internal/storage"
	"github.com/seifgad/acadgate/pkg/approval"
	"github.com/seifgad/acadgate/pkg/config"
	"github.com/seifgad/acadgate/pkg/session"
	"github.com/seifgad/acadgate/pkg/session/registry"
	"github.com/seifgad/acadgate/pkg/transport"
)

type App struct {
	logger      *slog.Logger
	registry    session.Registry
	coordinator *coauth.Coordinator
	fanout      *notify.Fanout
	// one dispatch table per channel: the authenticated portal socket must
	// not be able to reach the pre-auth login events, and vice versa
	portalRouter *router.EventRouter
	loginRouter  *router.EventRouter
	notifStore   storage.NotificationStore
	wg           sync.WaitGroup
	http         *http.Server
	config       *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, notifStore storage.NotificationStore) *App {
	reg := registry.NewInMemoryRegistry(logger)
	broadcaster := session.NewBroadcaster(logger, reg)
	fanout := notify.NewFanout(logger, notifStore, reg)
	store := approval.NewStore(logger, cfg.Approval.TTL)
	coordinator := coauth.New(logger, store, broadcaster, fanout)

	portalRouter := router.NewEventRouter(logger)
	router.RegisterAdminEvents(portalRouter, reg, coordinator)
	loginRouter := router.NewEventRouter(logger)
	router.RegisterLoginEvents(loginRouter, coordinator)

	app := &App{
		logger:       logger,
		registry:     reg,
		coordinator:  coordinator,
		fanout:       fanout,
		portalRouter: portalRouter,
		loginRouter:  loginRouter,
		notifStore:   notifStore,
		config:       cfg,
		ctx:          rootCtx,
	}

	// Close over the registry for the limiter's count/cycle hooks.
	cycler := func(identityID string) {
		oldest, found := reg.OldestConnection(identityID)
		if found {
			logger.Info("Cycling connection: closing oldest",
				slog.String("identityID", identityID),
				slog.String("connID", oldest.ID().String()),
			)
			oldest.Close(errors.New("connection cycled by new connection"))
		}
	}

	// auth runs before the logger so request lines carry the identity
	authed := func(h http.Handler) http.Handler {
		return middleware.Chain(h,
			middleware.RequestMetadataMiddleware(),
			middleware.NewAuthMiddleware(logger, cfg.Server.Auth.JWTSecret, cfg.Server.Auth.TokenCookie),
			middleware.NewRequestLogger(logger),
		)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", middleware.Chain(
		http.HandlerFunc(app.upgradeHandler),
		middleware.RequestMetadataMiddleware(),
		middleware.NewAuthMiddleware(logger, cfg.Server.Auth.JWTSecret, cfg.Server.Auth.TokenCookie),
		middleware.NewRequestLogger(logger),
		middleware.NewConnectionLimiter(logger, reg.ConnectionCount, cycler, cfg.Server.ConnectionLimit),
	))
	// pre-auth channel for the admin login co-authorization flow
	mux.Handle("/ws/login", middleware.Chain(
		http.HandlerFunc(app.loginUpgradeHandler),
		middleware.RequestMetadataMiddleware(),
		middleware.NewRequestLogger(logger),
	))

	mux.Handle("GET /notifications", authed(http.HandlerFunc(app.listNotifications)))
	mux.Handle("PUT /notifications/{id}/read", authed(http.HandlerFunc(app.markNotificationRead)))
	mux.Handle("PUT /notifications/read-all", authed(http.HandlerFunc(app.markAllNotificationsRead)))
	// domain-event hand-off from the portal's CRUD layer
	mux.Handle("POST /events", authed(http.HandlerFunc(app.handleDomainEvent)))

	app.http = &http.Server{Addr: cfg.Server.Address, Handler: mux, BaseContext: func(l net.Listener) context.Context {
		return app.ctx
	}}

	return app
}

// Handler exposes the fully chained mux, mainly for httptest-based tests.
func (a *App) Handler() http.Handler {
	return a.http.Handler
}

func (a *App) Run() error {
	go a.coordinator.Run(a.ctx, a.config.Approval.SweepInterval)

	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

// upgradeHandler establishes the authenticated portal socket. Admin
// identities are auto-joined to the admins room by the registry.
func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, ok := middleware.ReqMetadataFrom(r.Context())
	if !ok {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	connLogger := a.logger.With(
		slog.String("remoteAddr", reqMeta.IP),
		slog.String("identityID", reqMeta.Identity.ID),
	)

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		a.logger,
	)
	client := a.registry.Join(reqMeta.Identity, conn, reqMeta.IP)

	conn.SetOnMessage(func(ctx context.Context, _ uuid.UUID, msg []byte) {
		a.portalRouter.Dispatch(ctx, client, msg)
	})
	conn.SetOnClose(func(id uuid.UUID, err error) {
		connLogger.Info("Deregistering connection due to closure", slog.String("connID", id.String()))
		a.registry.Leave(id)
	})

	connLogger.Info("Portal connection fully established", slog.String("role", string(reqMeta.Identity.Role)))
	conn.Run()
	<-conn.Done()
}

// loginUpgradeHandler establishes the pre-auth co-authorization channel.
// The requester never enters the registry: they are not an authenticated
// identity, and only the coordinator needs to find their connection again.
func (a *App) loginUpgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, ok := middleware.ReqMetadataFrom(r.Context())
	if !ok {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	connLogger := a.logger.With(slog.String("remoteAddr", reqMeta.IP))

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept login websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		a.logger,
	)
	client := &session.Client{Conn: conn, RemoteIP: reqMeta.IP, ConnectedAt: time.Now()}

	conn.SetOnMessage(func(ctx context.Context, _ uuid.UUID, msg []byte) {
		a.loginRouter.Dispatch(ctx, client, msg)
	})
	conn.SetOnClose(func(id uuid.UUID, err error) {
		// an abandoned login attempt is not cancelled; the TTL sweep reaps it
		a.coordinator.Forget(id)
	})

	connLogger.Info("Login channel established", slog.String("connID", conn.ID().String()))
	conn.Run()
	<-conn.Done()
}

// Shutdown runs the graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// close all active WebSocket connections.
	a.logger.Info("Closing all active connections...")
	for _, conn := range a.registry.AllConnections() {
		conn.Close(errors.New("graceful shutdown"))
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}
