package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/ILLUVRSE/streamkit/cmd/streamkitctl/httpapi"
	"github.com/ILLUVRSE/streamkit/internal/cdc/contract"
	"github.com/ILLUVRSE/streamkit/internal/config"
	"github.com/ILLUVRSE/streamkit/internal/engine/builder"
	"github.com/ILLUVRSE/streamkit/internal/engine/operators"
)

// openCheckpointStore opens a Postgres connection and wraps it as a
// CheckpointStore when DATABASE_URL is configured. Returns a nil *sql.DB
// and nil CheckpointStore when no DSN is set; CDC sources then fall back
// to their caller's own checkpoint backing (e.g. in-memory, for demos).
func openCheckpointStore(ctx context.Context, cfg *config.Config) (*sql.DB, *contract.CheckpointStore, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, nil
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	backing := contract.NewSQLCheckpointBacking(db, "streamkit_checkpoints", "streamkit_checkpoints")
	if err := backing.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ensure checkpoint schema: %w", err)
	}
	sourceID := cfg.CDCSourceID
	if sourceID == "" {
		sourceID = "default"
	}
	return db, contract.NewCheckpointStore(backing, sourceID), nil
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := config.LoadFromEnv()

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 10*time.Second)
	checkpointDB, checkpoints, err := openCheckpointStore(bootCtx, cfg)
	cancelBoot()
	if err != nil {
		log.Fatalf("checkpoint store: %v", err)
	}
	if checkpoints != nil {
		log.Printf("postgres checkpoint store ready for source %q", cfg.CDCSourceID)
	}

	// S1 demo: keep even values, multiply by 10, collect. The pipeline hangs
	// off a branch of the root builder, whose Build carries the emit head.
	collector := operators.NewCollectorSink[int]()
	demo := builder.NewStream[int]("filter-map-sink")
	demo.AddBranch("main", func(sub *builder.StreamBuilder[int]) {
		evens := sub.Filter(func(v int) bool { return v%2 == 0 })
		builder.Map(evens, func(v int) int { return v * 10 }).SinkOperator(collector)
	})
	stream := demo.Build()
	ctx, cancelStream := context.WithCancel(context.Background())
	if err := stream.Start(ctx); err != nil {
		log.Fatalf("failed to start demo stream: %v", err)
	}
	log.Printf("demo stream %q running", stream.Name())

	r := chi.NewRouter()
	r.Use(httpapi.NewAuthMiddleware(cfg, []byte(os.Getenv("JWT_HMAC_SECRET"))))
	httpapi.RegisterRoutes(r, stream)
	r.Get("/streams/collected", func(w http.ResponseWriter, req *http.Request) {
		for _, v := range collector.Values() {
			fmt.Fprintf(w, "%d\n", v)
		}
	})
	r.Post("/streams/emit/{value}", func(w http.ResponseWriter, req *http.Request) {
		v, err := strconv.Atoi(chi.URLParam(req, "value"))
		if err != nil {
			http.Error(w, "value must be an integer", http.StatusBadRequest)
			return
		}
		if err := stream.Emit(req.Context(), v); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("starting streamkitctl server on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}

	cancelStream()
	if err := stream.Stop(); err != nil {
		log.Printf("stream stop error: %v", err)
	}
	if checkpointDB != nil {
		if err := checkpointDB.Close(); err != nil {
			log.Printf("checkpoint db close error: %v", err)
		}
	}
}

