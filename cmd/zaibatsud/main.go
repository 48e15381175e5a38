package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zaibatsu/config"
	"zaibatsu/core/events"
	"zaibatsu/core/state"
	"zaibatsu/core/types"
	"zaibatsu/native/assets"
	"zaibatsu/native/auth"
	nativecommon "zaibatsu/native/common"
	"zaibatsu/native/loan"
	"zaibatsu/native/oracle"
	"zaibatsu/native/pool"
	"zaibatsu/observability"
	"zaibatsu/observability/logging"
	"zaibatsu/storage"
)

// logEmitter forwards engine events to the structured log.
type logEmitter struct {
	logger *slog.Logger
}

func (l logEmitter) Emit(event events.Event) {
	if event == nil {
		return
	}
	detailed, ok := event.(interface{ Event() *types.Event })
	if !ok {
		l.logger.Info(event.EventType())
		return
	}
	record := detailed.Event()
	args := make([]any, 0, len(record.Attributes)*2)
	for key, value := range record.Attributes {
		args = append(args, slog.String(key, value))
	}
	l.logger.Info(record.Type, args...)
}

// writeRecord renders a single stored record as JSON, 404ing absent keys.
func writeRecord(w http.ResponseWriter, r *http.Request, load func() (any, bool, error)) {
	record, ok, err := load()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(record); err != nil {
		slog.Warn("Failed to encode record", slog.Any("error", err))
	}
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("ZAIBATSU_ENV"))
	logger := logging.Setup("zaibatsud", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	serviceAddr, err := cfg.Service()
	if err != nil {
		logger.Error("Invalid service address", slog.Any("error", err))
		os.Exit(1)
	}
	contractAddr, err := cfg.Contract()
	if err != nil {
		logger.Error("Invalid contract address", slog.Any("error", err))
		os.Exit(1)
	}
	creatorAddr, err := cfg.Creator()
	if err != nil {
		logger.Error("Invalid creator address", slog.Any("error", err))
		os.Exit(1)
	}

	var db storage.Database
	if cfg.InMemory {
		db = storage.NewMemDB()
	} else {
		leveldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			panic(fmt.Sprintf("Failed to open database: %v", err))
		}
		db = leveldb
	}
	defer db.Close()

	manager := state.NewManager(db)

	contract, found, err := manager.AuthGet()
	if err != nil {
		logger.Error("Failed to load contract state", slog.Any("error", err))
		os.Exit(1)
	}
	if !found {
		contract = auth.NewContractState(creatorAddr)
		if err := contract.SetServiceAddress(creatorAddr, serviceAddr); err != nil {
			logger.Error("Failed to bind service address", slog.Any("error", err))
			os.Exit(1)
		}
		if err := manager.AuthPut(contract); err != nil {
			logger.Error("Failed to persist contract state", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Initialised contract state")
	}

	ledger := assets.NewLedger(contractAddr)
	feed := oracle.NewAppFeed(manager, cfg.OracleAppID)
	pauses := nativecommon.NewPauseSet(cfg.PausedModules)
	emitter := events.MultiEmitter{logEmitter{logger: logger}, observability.Engines()}

	poolEngine := pool.NewEngine(serviceAddr, contractAddr)
	poolEngine.SetState(manager)
	poolEngine.SetGateways(ledger, ledger)
	poolEngine.SetPriceFeed(feed)
	poolEngine.SetFeeSchedule(cfg.Fees)
	poolEngine.SetEmitter(emitter)
	poolEngine.SetPauses(pauses)

	loanEngine := loan.NewEngine(contractAddr)
	loanEngine.SetState(manager)
	loanEngine.SetGateways(ledger, ledger)
	loanEngine.SetPriceFeed(feed)
	loanEngine.SetFeeSchedule(cfg.Fees)
	loanEngine.SetEmitter(emitter)
	loanEngine.SetPauses(pauses)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("GET /v1/pools/{key}", func(w http.ResponseWriter, r *http.Request) {
		writeRecord(w, r, func() (any, bool, error) {
			info, ok, err := manager.PoolGet(r.PathValue("key"))
			return info, ok, err
		})
	})
	mux.HandleFunc("GET /v1/loans/{key}", func(w http.ResponseWriter, r *http.Request) {
		writeRecord(w, r, func() (any, bool, error) {
			details, ok, err := manager.LoanGet(r.PathValue("key"))
			return details, ok, err
		})
	})
	mux.HandleFunc("GET /v1/repayments/{key}", func(w http.ResponseWriter, r *http.Request) {
		writeRecord(w, r, func() (any, bool, error) {
			payment, ok, err := manager.RepaymentGet(r.PathValue("key"))
			return payment, ok, err
		})
	})

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("Starting zaibatsud",
		slog.String("listen", cfg.ListenAddress),
		slog.Uint64("oracleApp", cfg.OracleAppID),
		slog.Int("pausedModules", len(cfg.PausedModules)),
	)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("HTTP server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
