package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"study-partner-backend/internal/config"
	"study-partner-backend/internal/geo"
	"study-partner-backend/internal/geocode"
	"study-partner-backend/internal/handlers"
	"study-partner-backend/internal/middleware"
	"study-partner-backend/internal/repository"
	"study-partner-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// stores groups the storage backends selected by configuration
type stores struct {
	profiles  services.ProfileStore
	locations services.LocationStore
	closers   []io.Closer
}

func Run() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.DefaultConfigPath
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	ctx := context.Background()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to open storage")
	}
	defer st.close()

	cache, err := newCache(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to redis")
	}

	httpClient := &http.Client{Timeout: cfg.Geocode.HTTPTimeout}
	resolver := geocode.NewResolver(
		geocode.NewViaCEPClient(cfg.Geocode.ViaCEPURL, httpClient),
		geocode.NewNominatimClient(cfg.Geocode.NominatimURL, cfg.Geocode.UserAgent, httpClient),
		cache,
		geocode.ResolverConfig{
			Country: cfg.Geocode.Country,
			Fallback: geo.Coordinate{
				Latitude:  cfg.Geocode.FallbackLatitude,
				Longitude: cfg.Geocode.FallbackLongitude,
			},
			PacingInterval: cfg.Geocode.PacingInterval,
			Timeout:        cfg.Geocode.ResolveTimeout,
		},
	)

	// Initialize services
	searchService := services.NewSearchService(st.profiles, st.locations, resolver, cfg.Search.BatchSize)
	userService := services.NewUserService(st.profiles, resolver, cfg.JWT.Secret, cfg.JWT.TTL)

	var avatarHandler *handlers.AvatarHandler
	if cfg.AWS.S3Bucket != "" {
		avatarService, err := services.NewAvatarService(ctx, st.profiles, services.AvatarConfig{
			Region:    cfg.AWS.Region,
			Bucket:    cfg.AWS.S3Bucket,
			AccessKey: cfg.AWS.AccessKey,
			SecretKey: cfg.AWS.SecretKey,
			Endpoint:  cfg.AWS.Endpoint,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create avatar service")
		}
		avatarHandler = handlers.NewAvatarHandler(avatarService)
	} else {
		log.Warn().Msg("S3 bucket not configured, avatar uploads disabled")
	}

	// Initialize handlers
	searchHandler := handlers.NewSearchHandler(searchService, cfg.Search.DefaultRadiusKm)
	userHandler := handlers.NewUserHandler(userService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.Prometheus)
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins, handlers.DegradedHeader))

	r.Get("/", handlers.Root)
	r.Get("/health", handlers.Health)
	r.Handle("/metrics", promhttp.Handler())

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search/partners", searchHandler.SearchPartners)
		r.Get("/search/nearby", searchHandler.SearchNearby)

		r.Post("/users", userHandler.Register)
		r.Post("/users/verify", userHandler.Verify)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))
			r.Put("/users/{userId}", userHandler.Update)
			if avatarHandler != nil {
				r.Post("/users/{userId}/avatar", avatarHandler.Upload)
			}
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("storage", cfg.Storage.Driver).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// openStores connects the configured storage backend
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.Storage.Driver {
	case config.DriverFirestore:
		client, err := repository.ConnectFirestore(ctx, cfg.Firestore.ProjectID, cfg.Firestore.CredentialsFile)
		if err != nil {
			return nil, err
		}
		log.Info().Str("project_id", cfg.Firestore.ProjectID).Msg("Firestore connection established")

		repo := repository.NewFirestoreRepository(client)
		return &stores{profiles: repo, locations: repo, closers: []io.Closer{client}}, nil

	default:
		db, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		log.Info().Msg("Database connection established")

		if err := repository.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}

		return &stores{
			profiles:  repository.NewProfileRepository(db),
			locations: repository.NewLocationRepository(db),
			closers:   []io.Closer{poolCloser{db}},
		}, nil
	}
}

func (s *stores) close() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close storage")
		}
	}
}

// poolCloser adapts pgxpool.Pool to io.Closer
type poolCloser struct{ pool *pgxpool.Pool }

func (p poolCloser) Close() error {
	p.pool.Close()
	return nil
}

// newCache returns a Redis cache when redis.url is set, otherwise an in-process cache
func newCache(ctx context.Context, cfg *config.Config) (geocode.Cache, error) {
	if cfg.Redis.URL == "" {
		return geocode.NewMemoryCache(cfg.Geocode.CacheTTL), nil
	}

	rdb, err := geocode.ConnectRedis(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("Redis geocode cache enabled")
	return geocode.NewRedisCache(rdb, cfg.Geocode.CacheTTL), nil
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
