package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	appkafka "github.com/CoderLord25/ZenSocial/internal/broker"
	config "github.com/CoderLord25/ZenSocial/internal/init"
	"github.com/CoderLord25/ZenSocial/internal/logger"
	"github.com/CoderLord25/ZenSocial/internal/media"
	"github.com/CoderLord25/ZenSocial/internal/middleware"
	"github.com/CoderLord25/ZenSocial/internal/store"
	"github.com/CoderLord25/ZenSocial/internal/web"
	"github.com/gorilla/mux"
)

const (
	uploadURLPrefix = "/static/uploads"
	cleanupInterval = 30 * time.Minute
	tokenTTL        = 24 * time.Hour
)

type Server struct {
	store       store.StoreInterface
	kafkaWriter appkafka.KafkaWriter
	auth        *middleware.Authenticator
	limiter     *middleware.RateLimiter
	pages       *web.Renderer
	uploads     *media.Storage
	sessionTTL  time.Duration
	staticDir   string
}

var logg = logger.New()

// New wires a Server from its dependencies and configuration.
func New(st store.StoreInterface, writer appkafka.KafkaWriter, cfg *config.Config) (*Server, error) {
	pages, err := web.NewRenderer()
	if err != nil {
		return nil, err
	}
	if writer == nil {
		writer = appkafka.NopWriter{}
	}
	return &Server{
		store:       st,
		kafkaWriter: writer,
		auth: &middleware.Authenticator{
			Sessions:     st,
			JWTSecret:    []byte(cfg.JWTSecret),
			CookieSecure: cfg.CookieSecure,
		},
		limiter:    middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		pages:      pages,
		uploads:    media.NewStorage(cfg.UploadDir, uploadURLPrefix),
		sessionTTL: cfg.SessionTTL,
		staticDir:  cfg.StaticDir,
	}, nil
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Logging, middleware.Metrics, s.auth.Handler)

	page := func(h http.HandlerFunc) http.Handler { return middleware.RequirePage(h) }
	api := func(h http.HandlerFunc) http.Handler { return s.limiter.Handler(middleware.RequireAPI(h)) }
	public := func(h http.HandlerFunc) http.Handler { return s.limiter.Handler(h) }

	// Public identity endpoints
	r.HandleFunc("/login", s.loginPageHandler).Methods(http.MethodGet)
	r.Handle("/login", public(s.loginHandler)).Methods(http.MethodPost)
	r.HandleFunc("/mint", s.mintPageHandler).Methods(http.MethodGet)
	r.Handle("/mint", public(s.mintHandler)).Methods(http.MethodPost)
	r.Handle("/register_zenid", public(s.registerZenIDHandler)).Methods(http.MethodPost)
	r.Handle("/wallet_login", public(s.walletLoginHandler)).Methods(http.MethodPost)

	// Browser pages, redirect to /login without a session
	r.Handle("/logout", page(s.logoutHandler)).Methods(http.MethodGet)
	r.Handle("/", page(s.homeHandler)).Methods(http.MethodGet)
	r.Handle("/profile", page(s.profileHandler)).Methods(http.MethodGet)
	r.Handle("/earn", page(s.earnHandler)).Methods(http.MethodGet)
	r.Handle("/messages", page(s.messagesHandler)).Methods(http.MethodGet)
	r.Handle("/notifications", page(s.notificationsHandler)).Methods(http.MethodGet)

	// API endpoints, 401 without a session or token
	r.Handle("/edit_profile", api(s.editProfileHandler)).Methods(http.MethodPost)
	r.Handle("/create_post", api(s.createPostHandler)).Methods(http.MethodPost)
	r.Handle("/like_post/{id:[0-9]+}", api(s.likePostHandler)).Methods(http.MethodPost)
	r.Handle("/repost_post/{id:[0-9]+}", api(s.repostPostHandler)).Methods(http.MethodPost)
	r.Handle("/comment_post/{id:[0-9]+}", api(s.commentPostHandler)).Methods(http.MethodPost)

	r.Handle("/metrics", middleware.MetricsHandler()).Methods(http.MethodGet)

	r.PathPrefix(uploadURLPrefix + "/").Handler(
		http.StripPrefix(uploadURLPrefix+"/", http.FileServer(http.Dir(s.uploads.Dir))))
	r.PathPrefix("/static/").Handler(
		http.StripPrefix("/static/", http.FileServer(http.Dir(s.staticDir))))

	return r
}

// Run starts the HTTP server and shuts it down gracefully when ctx is done.
func Run(ctx context.Context, st store.StoreInterface, writer appkafka.KafkaWriter, cfg *config.Config) {
	s, err := New(st, writer, cfg)
	if err != nil {
		logg.Error("server", "Failed to initialise server", err)
		return
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second, // prevent slowloris attacks
		WriteTimeout: 30 * time.Second, // media uploads
		IdleTimeout:  120 * time.Second,
	}

	go s.cleanupLoop(ctx, cleanupInterval)

	// --- Start server in a goroutine ---
	go func() {
		logg.Info("server", "Starting HTTP server on "+cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Error("server", "Server stopped unexpectedly", err)
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	logg.Info("server", "Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server", "Error during server shutdown", err)
	} else {
		logg.Info("server", "Server stopped gracefully")
	}
}

// cleanupLoop purges expired sessions and idle rate limiters until ctx is done.
func (s *Server) cleanupLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.DeleteExpiredSessions(ctx)
			if err != nil {
				logg.Error("server", "Failed to clean up expired sessions", err)
			} else if n > 0 {
				logg.Info("server", fmt.Sprintf("Cleaned up %d expired sessions", n))
			}
			s.limiter.Cleanup(every)
		}
	}
}
