// cmd/gateway-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parapet/internal/authapi"
	"parapet/internal/gateway"
	"parapet/internal/proxy"
	"parapet/pkg/config"
	"parapet/pkg/db"
	"parapet/pkg/logger"
	"parapet/pkg/routes"
	"parapet/pkg/token"
	"parapet/pkg/users"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	var store users.Store
	if pool != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := users.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
		if err := users.SeedAdmin(ctx, pool, log); err != nil {
			log.Warnw("seed", "err", err)
		}
		cancel()
		store = users.NewPostgresStore(pool, log)
	} else {
		store = users.NewMemoryStoreFromEnv(log)
	}

	var table *routes.Table
	var err error
	if cfg.RoutesFile != "" {
		table, err = routes.Load(cfg.RoutesFile)
	} else {
		table, err = routes.FromEnv()
	}
	if err != nil {
		log.Fatalw("routing table", "err", err)
	}

	codec := token.NewCodec(cfg.JWTSecret, cfg.Issuer, cfg.Audience)
	issuer := token.NewIssuer(codec, cfg.Issuer, cfg.Audience, cfg.TokenTTL)
	validator := token.NewValidator(codec)

	auth := authapi.New(log, store, issuer, validator,
		authapi.NewThrottle(rdb, cfg.LoginMaxAttempts, cfg.LoginWindow))
	pipe := proxy.New(validator, table, cfg.UpstreamTimeout, log)
	app := gateway.New(log, auth, pipe, cfg.CORSOrigins)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: app.Handler()}
	go func() {
		log.Infow("gateway-service listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("gateway-service stopped")
}
