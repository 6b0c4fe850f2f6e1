package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/yasminsalleh35-cyber/trusted-file-link/internal/auth"
	"github.com/yasminsalleh35-cyber/trusted-file-link/internal/httpapi"
	"github.com/yasminsalleh35-cyber/trusted-file-link/internal/obs"
)

var version = "0.3.0"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("TFL_COMMIT"))

	secret := os.Getenv("TFL_AUTH_SECRET")
	if secret == "" {
		log.Fatal("TFL_AUTH_SECRET is required")
	}

	var (
		db    *sql.DB
		store auth.Store
	)
	if dsn := os.Getenv("TFL_PG_DSN"); dsn != "" {
		var err error
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		store = auth.NewPGStore(db)
	} else {
		log.Print("TFL_PG_DSN not set, using in-memory store")
		store = auth.NewMemoryStore()
	}

	codecOpts := []auth.CodecOption{}
	if iss := os.Getenv("TFL_ISSUER"); iss != "" {
		codecOpts = append(codecOpts, auth.WithIssuer(iss))
	}
	if ttl, err := time.ParseDuration(os.Getenv("TFL_ACCESS_TTL")); err == nil {
		codecOpts = append(codecOpts, auth.WithAccessTTL(ttl))
	}
	if ttl, err := time.ParseDuration(os.Getenv("TFL_REFRESH_TTL")); err == nil {
		codecOpts = append(codecOpts, auth.WithRefreshTTL(ttl))
	}
	codec, err := auth.NewCodec([]byte(secret), codecOpts...)
	if err != nil {
		log.Fatalf("codec: %v", err)
	}

	sessions, err := auth.NewSessionService(store, codec)
	if err != nil {
		log.Fatalf("session service: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, sessions, nil)

	addr := os.Getenv("TFL_LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting trusted-file-link-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
