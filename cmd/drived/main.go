// Command drived wires every piece of the storage/state-transition engine
// together into a single running process: a tree store backed by an
// on-disk (or in-memory, when the configured data dir is empty or "memory")
// key-value database, the
// action pipeline with real signature verification, a Prometheus metrics
// endpoint, a best-effort Firestore audit mirror, and the host boundary
// that drives it all through a tiny line-delimited-JSON block feed read
// from stdin. It exists to demonstrate the wiring, not to be a production
// node supervisor - that belongs to whatever process embeds this module.
package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/driveplatform/drive/pkg/action"
	"github.com/driveplatform/drive/pkg/audit"
	"github.com/driveplatform/drive/pkg/config"
	"github.com/driveplatform/drive/pkg/cost"
	"github.com/driveplatform/drive/pkg/crypto"
	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/host"
	"github.com/driveplatform/drive/pkg/kvdb"
	"github.com/driveplatform/drive/pkg/logging"
	"github.com/driveplatform/drive/pkg/metrics"
	"github.com/driveplatform/drive/pkg/treestore"
	"github.com/driveplatform/drive/pkg/version"
	"github.com/driveplatform/drive/pkg/wireformat"
)

// blockFeedLine is one line of the demo stdin feed: a block's consensus
// context plus its raw, still-encoded transitions.
type blockFeedLine struct {
	Height      uint64   `json:"height"`
	Epoch       uint16   `json:"epoch"`
	TimeMs      uint64   `json:"time_ms"`
	CoreHeight  uint32   `json:"core_height"`
	Transitions []string `json:"transitions"` // base64-encoded wireformat envelopes
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "drived: load config:", err)
		os.Exit(1)
	}

	log, err := logging.New(&logging.Config{Level: parseLevel(cfg.LogLevel), Format: cfg.LogFormat})
	if err != nil {
		fmt.Fprintln(os.Stderr, "drived: build logger:", err)
		os.Exit(1)
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Error("open store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	versions := version.NewRegistry(version.New(cfg.ProtocolVersion, map[string]uint16{}))
	engine := drive.NewEngine(store, versions)

	pricing := cost.Pricing{
		StoragePricePerByte: cfg.StoragePricePerByte,
		CPUPricePerUnit:     cfg.CPUPricePerUnit,
	}
	pipeline := action.NewPipeline(engine, pricing, crypto.Verify)

	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auditClient, err := audit.NewClient(ctx, &audit.Config{
		ProjectID: cfg.AuditFirestoreProjectID,
		Enabled:   cfg.AuditFirestoreProjectID != "",
		Log:       log,
	})
	if err != nil {
		log.Error("init audit client", "error", err)
		os.Exit(1)
	}
	defer auditClient.Close()
	trail := audit.NewBlockTrail(auditClient, log)

	h := host.New(engine, pipeline, wireformat.Decode, log, rec)

	metricsSrv := startMetricsServer(cfg.MetricsAddr, reg, log)
	defer shutdownMetricsServer(metricsSrv)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	log.Info("drived ready", "protocol_version", cfg.ProtocolVersion, "metrics_addr", cfg.MetricsAddr)
	runBlockFeed(ctx, h, store, trail, log)
	log.Info("drived stopped")
}

// openStore builds the authenticated tree store: an on-disk goleveldb
// database under cfg.DataDir, or a throwaway in-memory one when DataDir is
// empty or the literal "memory" (used by local smoke tests of this binary).
func openStore(cfg *config.Config) (treestore.Store, func(), error) {
	if cfg.DataDir == "memory" || cfg.DataDir == "" {
		return treestore.NewMemStore(kvdb.New(kvdb.NewMemDB())), func() {}, nil
	}
	db, err := kvdb.NewGoLevelDB("drive", cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}
	store := treestore.NewMemStore(kvdb.New(db))
	return store, func() { _ = db.Close() }, nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func startMetricsServer(addr string, reg *prometheus.Registry, log *logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server", "error", err)
		}
	}()
	return srv
}

func shutdownMetricsServer(srv *http.Server) {
	_ = srv.Shutdown(context.Background())
}

// runBlockFeed reads one JSON blockFeedLine per line from stdin, applies
// it, mirrors a summary to the audit trail, and logs the result - until
// stdin closes or ctx is cancelled.
func runBlockFeed(ctx context.Context, h *host.Host, store treestore.Store, trail *audit.BlockTrail, log *logging.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var feed blockFeedLine
		if err := json.Unmarshal(line, &feed); err != nil {
			log.Error("malformed block feed line", "error", err)
			continue
		}

		raw := make([][]byte, 0, len(feed.Transitions))
		for _, encoded := range feed.Transitions {
			bytes, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				log.Error("malformed transition encoding", "height", feed.Height, "error", err)
				continue
			}
			raw = append(raw, bytes)
		}

		info := host.BlockInfo{Height: feed.Height, Epoch: feed.Epoch, TimeMs: feed.TimeMs, CoreHeight: feed.CoreHeight}
		results := h.ApplyBlock(info, raw)

		trail.RecordBlock(ctx, info, store.RootHash(), results)
	}
	if err := scanner.Err(); err != nil {
		log.Error("block feed read error", "error", err)
	}
}
