package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"google.golang.org/grpc"

	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/handler"
	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/notifier"
	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/session"
	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/upload"
	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/taskdash-api/shared/auth"
	"github.com/vasapolrittideah/taskdash-api/shared/database"
	"github.com/vasapolrittideah/taskdash-api/shared/discovery"
	"github.com/vasapolrittideah/taskdash-api/shared/logging"
	"github.com/vasapolrittideah/taskdash-api/shared/mailer"
	"github.com/vasapolrittideah/taskdash-api/shared/provider"
	"github.com/vasapolrittideah/taskdash-api/shared/ratelimit"
	"github.com/vasapolrittideah/taskdash-api/shared/security"
	"github.com/vasapolrittideah/taskdash-api/shared/utilities"
	"github.com/vasapolrittideah/taskdash-api/shared/validation"
)

const healthInterval = 10 * time.Second

func main() {
	// A missing .env file is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Name, cfg.Log)
	if cfg.Log.Pretty {
		figure.NewFigure(cfg.Name, "cybermedium", true).Print()
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("auth service stopped with error")
	}
	logger.Info().Msg("auth service stopped")
}

func run(cfg *config.AuthServiceConfig, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mongoClient, err := database.ConnectMongo(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to disconnect from mongodb")
		}
	}()

	userRepo := repository.NewUserMongoRepository(ctx, logger, mongoClient.Database(cfg.Mongo.Database))

	securityNotifier, err := newSecurityNotifier(cfg, logger)
	if err != nil {
		return err
	}

	jwtAuth := auth.NewJWTAuthenticator(cfg.Token.Audience, cfg.Token.Issuer)
	tokenUsecase := usecase.NewTokenUsecase(userRepo, jwtAuth, cfg.Token, securityNotifier, logger)
	authUsecase := usecase.NewAuthUsecase(userRepo, security.NewArgon2Hasher(), tokenUsecase)

	var consul *discovery.Consul
	if cfg.Consul.Enabled() {
		if consul, err = discovery.NewConsul(cfg.Consul); err != nil {
			return err
		}
	}

	recognizer := provider.NewRecognitionClient(recognitionEndpoint(cfg, consul), cfg.Recognition.Timeout)
	faceUsecase := usecase.NewFaceUsecase(userRepo, recognizer, tokenUsecase, logger)

	uploads, err := upload.NewStore(cfg.Upload.Dir, cfg.Upload.MaxBytes)
	if err != nil {
		return err
	}

	validator, err := validation.New()
	if err != nil {
		return err
	}

	sameSite, err := cfg.Cookie.SameSiteMode()
	if err != nil {
		return err
	}
	binder := session.NewBinder(session.Options{
		Secure:     cfg.IsProduction(),
		SameSite:   sameSite,
		Domain:     cfg.Cookie.Domain,
		Persistent: cfg.Cookie.Persistent,
		AccessTTL:  cfg.Token.AccessTokenExpiresIn,
		RefreshTTL: cfg.Token.RefreshTokenExpiresIn,
	})

	trustedProxies, err := cfg.HTTP.TrustedProxyPrefixes()
	if err != nil {
		return err
	}

	deps := handler.RouterDeps{
		AuthUsecase:    authUsecase,
		FaceUsecase:    faceUsecase,
		TokenUsecase:   tokenUsecase,
		Binder:         binder,
		Uploads:        uploads,
		Validator:      validator,
		HealthCheck:    mongoHealthCheck(mongoClient),
		TrustedProxies: trustedProxies,
		AllowedOrigins: splitOrigins(cfg.HTTP.CORSOrigin),
		Logger:         logger,
	}

	if cfg.RateLimit.Enabled() {
		redisClient := ratelimit.NewRedisClient(cfg.RateLimit)
		defer redisClient.Close()

		deps.RateLimiter = ratelimit.NewLimiter(redisClient, cfg.RateLimit.Limit, cfg.RateLimit.Window)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.NewRouter(deps),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server failed: %w", err)
		}
	}()

	var grpcServer *grpc.Server
	if cfg.HTTP.GRPCHealthAddr != "" {
		lis, err := net.Listen("tcp", cfg.HTTP.GRPCHealthAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.HTTP.GRPCHealthAddr, err)
		}

		grpcServer = grpc.NewServer()
		healthServer := utilities.RegisterHealthServer(grpcServer)
		go utilities.WatchHealth(ctx, logger, healthServer, healthInterval, deps.HealthCheck)

		go func() {
			logger.Info().Str("addr", lis.Addr().String()).Msg("grpc health server listening")
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc health server failed: %w", err)
			}
		}()

		if consul != nil {
			deregister, err := consul.Register(lis.Addr().String())
			if err != nil {
				return err
			}
			defer func() {
				if err := deregister(); err != nil {
					logger.Error().Err(err).Msg("failed to deregister from consul")
				}
			}()
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	return runErr
}

func newSecurityNotifier(cfg *config.AuthServiceConfig, logger *zerolog.Logger) (usecase.SecurityNotifier, error) {
	if !cfg.Mailer.Enabled() {
		return notifier.NewLogNotifier(logger), nil
	}

	m, err := mailer.NewMailer(cfg.Mailer)
	if err != nil {
		return nil, err
	}

	return notifier.NewMailNotifier(m, "Taskdash", logger), nil
}

// recognitionEndpoint prefers a Consul lookup when a service name is configured.
func recognitionEndpoint(cfg *config.AuthServiceConfig, consul *discovery.Consul) provider.EndpointResolver {
	if consul != nil && cfg.Recognition.ConsulService != "" {
		return discovery.NewServiceResolver(consul, cfg.Recognition.ConsulService, "http")
	}

	return provider.StaticEndpoint(cfg.Recognition.URL)
}

func mongoHealthCheck(client *mongo.Client) handler.HealthCheck {
	return func(ctx context.Context) error {
		return database.Ping(ctx, client)
	}
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}

	return origins
}
