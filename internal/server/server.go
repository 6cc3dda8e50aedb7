package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/giveboard/internal/activity"
	"github.com/victornm/giveboard/internal/api"
	"github.com/victornm/giveboard/internal/backend"
	"github.com/victornm/giveboard/internal/cache"
	"github.com/victornm/giveboard/internal/domain"
	"github.com/victornm/giveboard/internal/event"
	"github.com/victornm/giveboard/internal/leaderboard"
	"github.com/victornm/giveboard/internal/telemetry"
	"github.com/victornm/giveboard/internal/wheel"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Backend struct {
		URL            string
		Timeout        time.Duration
		HealthInterval time.Duration
	}

	Cache struct {
		Timeout time.Duration
		// RefreshInterval polls the leaderboard and recent entries. Zero disables polling.
		RefreshInterval time.Duration
	}

	Redis struct {
		Cache struct {
			Addrs  []string
			Pass   string
			Prefix string
			TTL    time.Duration
		}

		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Postgres struct {
		Wheel struct {
			Addr string
			User string
			Pass string
			Name string
		}
	}
}

// DefaultConfig is the config before the file and environment are applied.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 8081
	c.Backend.Timeout = 10 * time.Second
	c.Backend.HealthInterval = 15 * time.Second
	c.Cache.Timeout = 30 * time.Second
	c.Redis.Cache.Prefix = "giveboard"
	c.Redis.Cache.TTL = 24 * time.Hour
	c.Redis.Pubsub.Prefix = "giveboard"
	return c
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			cache  redis.UniversalClient
			pubsub redis.UniversalClient
		}

		postgres struct {
			wheel *pgxpool.Pool
		}
	}

	backend *backend.Client
	cache   *cache.Cache

	service struct {
		leaderboard *leaderboard.Service
		activity    *activity.Service
		wheel       *wheel.Service
	}

	health *health.Server
	http   *http.Server
	grpc   *grpc.Server

	cancel context.CancelFunc
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initCache()
	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	s.backend = backend.New(backend.Config{
		BaseURL: s.c.Backend.URL,
		Timeout: s.c.Backend.Timeout,
	})

	return nil
}

func (s *Server) initRedis() error {
	connect := func(addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.cache, err = connect(s.c.Redis.Cache.Addrs, s.c.Redis.Cache.Pass)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	s.infra.redis.pubsub, err = connect(s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pg := s.c.Postgres.Wheel
	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", pg.User, pg.Pass, pg.Addr, pg.Name))
	if err != nil {
		return fmt.Errorf("wheel: %w", err)
	}

	s.infra.postgres.wheel, err = pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return fmt.Errorf("wheel: %w", err)
	}

	if err := s.infra.postgres.wheel.Ping(ctx); err != nil {
		return fmt.Errorf("wheel: %w", err)
	}

	return nil
}

// initCache registers every backend resource. Streamers and totals rarely change,
// so they are not refetched when a dashboard regains focus.
func (s *Server) initCache() {
	s.cache = cache.New(cache.Config{
		Store:    cache.NewRedisStore(s.infra.redis.cache, s.c.Redis.Cache.Prefix, s.c.Redis.Cache.TTL),
		EventBus: s.eb,
		Timeout:  s.c.Cache.Timeout,
	})

	static := cache.StaticOptions()
	live := cache.DefaultOptions()
	live.RefreshInterval = s.c.Cache.RefreshInterval

	for _, r := range []struct {
		key  string
		path string
		opts cache.Options
	}{
		{domain.ResourceStreamers, backend.PathStreamers, static},
		{domain.ResourceParticipantsCount, backend.PathParticipantsCount, static},
		{domain.ResourceEntriesCount, backend.PathEntriesCount, static},
		{domain.ResourceLeaderboard, backend.PathLeaderboard, live},
		{domain.ResourceRecentEntries, backend.PathRecentEntries, live},
	} {
		s.cache.Register(r.key, s.backend.Resource(r.path), r.opts)
	}
}

func (s *Server) initService() {
	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		Cache: s.cache,
	})

	s.service.activity = activity.NewService(activity.Config{
		Cache: s.cache,
	})

	s.service.wheel = wheel.NewService(wheel.Config{
		EventBus: s.eb,
		Records:  s.service.leaderboard,
		Store:    wheel.NewPostgresStore(s.infra.postgres.wheel),
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)

	api.New(api.Config{
		Router:       e,
		EventBus:     s.eb,
		Cache:        s.cache,
		Backend:      s.backend,
		Leaderboard:  s.service.leaderboard,
		Activity:     s.service.activity,
		Wheel:        s.service.wheel,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if err := wheel.NewPostgresStore(s.infra.postgres.wheel).Migrate(ctx); err != nil {
		slog.ErrorContext(ctx, "server: migrate failed", "error", err)
		panic(err)
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		s.cache.Run(ctx)
		return nil
	})

	eg.Go(func() error {
		watchBackend(ctx, s.backend, s.health, s.c.Backend.HealthInterval)
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.cancel != nil {
		s.cancel()
	}

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.cache.Close()
	s.eb.Stop()

	s.infra.postgres.wheel.Close()
	for _, r := range []redis.UniversalClient{s.infra.redis.cache, s.infra.redis.pubsub} {
		if err := r.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "error", err)
		}
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
