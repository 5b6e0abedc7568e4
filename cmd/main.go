package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stove_coordination/internal/config"
	"stove_coordination/internal/debounce"
	"stove_coordination/internal/eventlog"
	"stove_coordination/internal/handlers"
	"stove_coordination/internal/logger"
	"stove_coordination/internal/metrics"
	"stove_coordination/internal/netatmo"
	"stove_coordination/internal/notify"
	"stove_coordination/internal/ratelimit"
	"stove_coordination/internal/repository"
	"stove_coordination/internal/repository/db"
	"stove_coordination/internal/server"
	"stove_coordination/internal/service"
	"stove_coordination/internal/stove"
	"stove_coordination/internal/throttle"

	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

// @title                       Stove coordination API
// @version                     1.0
// @description                 Boosts thermostat rooms while a pellet stove runs and restores them when it stops.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	issueFor := flag.String("issue-token", "", "print a bearer token for the given user id and exit")
	tokenTTL := flag.Duration("token-ttl", 0, "lifetime of the token printed by -issue-token (default 24h)")
	flag.Parse()

	// load configs/config.yml (+ .env, + STOVESYNC_* environment)
	cfg, err := config.Load("config", "configs", ".")
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Get(cfg.Server.LogLevel)
	defer func() { _ = log.Sync() }()

	if *issueFor != "" {
		token, err := service.NewAuthService(cfg.Server.JWTKey).IssueToken(*issueFor, *tokenTTL)
		if err != nil {
			log.Fatalw("failed to issue token", "user_id", *issueFor, "err", err)
		}
		fmt.Println(token)
		return
	}

	// open DB (event log, and the key-value store when driver=sqlite)
	sqlDB, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	store, closeStore, err := openStore(cfg, sqlDB)
	if err != nil {
		log.Fatalw("failed to open store", "driver", cfg.Store.Driver, "err", err)
	}
	defer closeStore()

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	repos := repository.NewRepository(sqlDB, store)

	// event log: writes go through a bounded queue off the request path
	events := eventlog.New(repos.Events, store, cfg.Server.LogQueue, log, m.ObserveEventLog)
	go events.Run()

	limiter, notifyThrottle, sweepers := limits(cfg, store)

	notifier := openNotifier(cfg, log)
	throttled := notify.NewThrottled(notifier, notifyThrottle, log, m.ObserveNotification)

	deb := debounce.New(repos.State, log, debounce.WithCallbackTimeout(cfg.Coordination.CallbackTimeout))
	sweepers = append(sweepers, service.Sweeper{Name: "debounce", Sweep: deb.Sweep})

	// one vendor account; every call is charged to the user it is made for
	tokens := netatmo.NewTokenSource(ctx, netatmo.TokenConfig{
		ClientID:     cfg.Netatmo.ClientID,
		ClientSecret: cfg.Netatmo.ClientSecret,
		TokenURL:     cfg.Netatmo.TokenURL,
		RefreshToken: cfg.Netatmo.RefreshToken,
	})
	climate := netatmo.NewClient(cfg.Netatmo.BaseURL, tokens, cfg.Netatmo.Timeout, log)
	climateFor := func(userID string) netatmo.API {
		return netatmo.WithRateLimit(climate, limiter, userID, m.ObserveClimateCall)
	}

	services := service.NewService(repos, service.Deps{
		Coordination: service.CoordinationDeps{
			Climate:  climateFor,
			Notifier: throttled,
			Events:   events,
			Logger:   log,
			Location: cfg.Location(),
			Language: cfg.Server.Language,
			Observe:  m.ObserveCycle,
		},
		Debounce:    deb,
		RateLimiter: limiter,
		Throttle:    notifyThrottle,
		Stove:       stove.NewClient(cfg.Stove.BaseURL, cfg.Stove.APIKey, cfg.Stove.Timeout),
		Targets:     pollTargets(cfg),
		Events:      events,
		SigningKey:  cfg.Server.JWTKey,
	})

	metricsHandler := m.Handler()
	if cfg.Server.MetricsOff {
		metricsHandler = nil
	}
	apiHandler := handlers.NewHandler(services, log, metricsHandler)

	// background loops
	if cfg.Stove.BaseURL != "" && len(cfg.Coordination.Users) > 0 {
		go services.Poller.Run(ctx, cfg.Coordination.PollInterval)
	} else {
		log.Infow("stove poller disabled; cycles only via POST /api/v1/coordination/cycle")
	}
	go service.RunSweeps(ctx, cfg.Coordination.SweepInterval, m.ObserveSweep, sweepers...)

	// start HTTP server
	srv := server.New()
	runHTTPServer(srv, cfg.Server.Port, apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)

	drainCtx, drainCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer drainCancel()
	throttled.Wait()
	if err := notifier.Close(); err != nil {
		log.Warnw("notifier close failed", "err", err)
	}
	if err := events.Close(drainCtx); err != nil {
		log.Warnw("event log drain incomplete", "err", err, "stats", events.Stats())
	}
}

// openStore picks the key-value backend for state, preferences and limits.
func openStore(cfg *config.Config, sqlDB *sql.DB) (repository.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis at %s: %w", cfg.Store.RedisAddr, err)
		}
		return repository.NewRedisStore(client, "stovesync:"), func() { _ = client.Close() }, nil
	case config.DriverMemory:
		return repository.NewMemoryStore(), func() {}, nil
	default:
		return repository.NewSQLiteStore(sqlDB), func() {}, nil
	}
}

// limits builds the rate limiter and notification throttle. The volatile
// variants need periodic sweeping; the durable ones expire on read.
func limits(cfg *config.Config, store repository.Store) (ratelimit.Limiter, throttle.Throttle, []service.Sweeper) {
	if cfg.Coordination.DurableLimits {
		return ratelimit.NewDurable(store, nil), throttle.NewDurable(store, nil), nil
	}
	rl := ratelimit.NewMemory(nil)
	th := throttle.NewMemory(nil)
	return rl, th, []service.Sweeper{
		{Name: "rate_limit", Sweep: func(context.Context) int { return rl.Sweep() }},
		{Name: "notification_throttle", Sweep: func(context.Context) int { return th.Sweep() }},
	}
}

// openNotifier connects to MQTT when a broker is configured, otherwise
// alerts only go to the log.
func openNotifier(cfg *config.Config, log *logger.Logger) notify.Notifier {
	if cfg.MQTT.Broker == "" {
		return notify.NewLogNotifier(log)
	}
	n, err := notify.NewMQTTNotifier(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.TopicPrefix)
	if err != nil {
		log.Warnw("mqtt unavailable; notifications go to the log", "broker", cfg.MQTT.Broker, "err", err)
		return notify.NewLogNotifier(log)
	}
	return n
}

func pollTargets(cfg *config.Config) []service.PollTarget {
	out := make([]service.PollTarget, 0, len(cfg.Coordination.Users))
	for _, u := range cfg.Coordination.Users {
		out = append(out, service.PollTarget{UserID: u.ID, HomeID: u.HomeID, Device: u.StoveDevice})
	}
	return out
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
	go func() {
		<-srv.Ready()
		log.Infow("http server listening", "addr", srv.Addr().String())
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
