// Command pipeline runs the regex extraction phase followed immediately by
// the neural fallback phase in a single process, for deployments that do not
// need the two phases on independent schedules (SPEC_FULL.md §6).
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/theodi/lease-data-foundation/config"
	"github.com/theodi/lease-data-foundation/docstore"
	"github.com/theodi/lease-data-foundation/driver"
	"github.com/theodi/lease-data-foundation/neural"
	"github.com/theodi/lease-data-foundation/progress"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startHTTPServer(ctx, cfg.Port, "pipeline")

	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	store, err := docstore.Dial(dialCtx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
	cancel()
	if err != nil {
		log.Fatalf("failed to connect to document store: %v", err)
	}
	defer store.Close(context.Background())

	if err := store.EnsureGeoIndex(ctx); err != nil {
		log.Printf("failed to ensure geo index: %v", err)
	}

	if cfg.HFToken == "" {
		log.Print("HF_TOKEN not set; neural phase will run against NullModelClient and mark every record invalid")
	}

	regexCheckpoint := progress.Open("data/regex_progress.txt")
	neuralCheckpoint := progress.Open("data/neural_progress.txt")
	extractor := neural.NewExtractor(neural.NullModelClient{})

	runPhases := func() {
		log.Print("starting regex extraction phase")
		regexStats, err := driver.RunRegexPhase(ctx, store, regexCheckpoint, cfg.BatchSize)
		if err != nil {
			log.Printf("regex extraction phase failed: %v", err)
		} else {
			log.Printf("regex extraction phase complete: %s", regexStats)
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		log.Print("starting neural extraction phase")
		neuralStats, err := driver.RunNeuralPhase(ctx, store, extractor, neuralCheckpoint, cfg.T5BatchSize, cfg.DBBatchSize)
		if err != nil {
			log.Printf("neural extraction phase failed: %v", err)
			return
		}
		log.Printf("neural extraction phase complete: %s", neuralStats)
	}

	if cfg.RunOnce {
		runPhases()
		log.Print("RUN_ONCE enabled; exiting after one pass")
		return
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Print("pipeline shutting down")
			return
		default:
		}

		runPhases()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func startHTTPServer(ctx context.Context, port, name string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("%s http server shutdown error: %v", name, err)
		}
	}()

	go func() {
		log.Printf("%s HTTP server listening on :%s", name, port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("%s http server failed: %v", name, err)
		}
	}()
}
