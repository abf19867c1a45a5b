// Command btctx is the engine's CLI: check a wallet's balance, build and
// broadcast a spend, or relay an already-signed raw transaction, all
// against a single configured Electrum/Fulcrum oracle.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/btctx/engine/internal/bterr"
	"github.com/btctx/engine/internal/config"
	"github.com/btctx/engine/internal/oracle"
	"github.com/btctx/engine/internal/script"
	"github.com/btctx/engine/internal/storage"
	"github.com/btctx/engine/internal/txn"
	"github.com/btctx/engine/internal/utxo"
	"github.com/btctx/engine/internal/wallet"
	"github.com/btctx/engine/pkg/helpers"
	"github.com/btctx/engine/pkg/logging"
)

var version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "balance":
		runBalance(os.Args[2:])
	case "send":
		runSend(os.Args[2:])
	case "broadcast-raw":
		runBroadcastRaw(os.Args[2:])
	case "version":
		fmt.Println(version)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: btctx <balance|send|broadcast-raw> [flags]")
}

func loadEngineConfig(path string) (*config.Config, *logging.Logger) {
	cfg, err := config.LoadOrCreate(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(&logging.Config{Level: cfg.Log.Level, TimeFormat: time.TimeOnly})
	return cfg, log
}

func oracleClient(cfg *config.Config, log *logging.Logger) *oracle.Client {
	return oracle.New(oracle.Config{
		Servers:    cfg.Oracle.Servers,
		UseTLS:     cfg.Oracle.UseTLS,
		Timeout:    time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.Oracle.MaxRetries,
	}, log)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return config.ConfigFileName
	}
	return filepath.Join(home, ".btctx", config.ConfigFileName)
}

func fail(log *logging.Logger, msg string, err error) {
	if log != nil {
		log.Error(msg, "error", err)
	} else {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	}
	os.Exit(1)
}

func runBalance(args []string) {
	fs := flag.NewFlagSet("balance", flag.ExitOnError)
	walletPath := fs.String("wallet", "wallet.json", "path to wallet descriptor")
	configPath := fs.String("config", defaultConfigPath(), "path to engine config")
	cached := fs.Bool("cached", false, "read from the local UTXO cache instead of querying the oracle")
	fs.Parse(args)

	cfg, log := loadEngineConfig(*configPath)
	w, err := wallet.Load(*walletPath)
	if err != nil {
		fail(log, "load wallet", err)
	}

	if *cached && cfg.CacheDBPath != "" {
		store, err := storage.New(&storage.Config{DBPath: cfg.CacheDBPath})
		if err != nil {
			fail(log, "open cache", err)
		}
		defer store.Close()

		balance, ok, err := store.CachedBalance(w.Address)
		if err != nil {
			fail(log, "read cache", err)
		}
		if ok {
			fmt.Printf("%s BTC (cached)\n", helpers.SatoshisToBTC(uint64(balance)))
			return
		}
		log.Warn("no cached balance yet, falling back to oracle")
	}

	client := oracleClient(cfg, log)
	collector := utxo.NewCollector(client)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Oracle.TimeoutSeconds)*time.Second*time.Duration(cfg.Oracle.MaxRetries+1))
	defer cancel()

	balance, err := collector.GetBalance(ctx, w)
	if err != nil {
		fail(log, "get balance", err)
	}
	fmt.Printf("%s BTC\n", helpers.SatoshisToBTC(uint64(balance)))

	if cfg.CacheDBPath != "" {
		utxos, err := collector.Collect(ctx, w)
		if err != nil {
			log.Warn("refresh cache: collect utxos", "error", err)
			return
		}
		store, err := storage.New(&storage.Config{DBPath: cfg.CacheDBPath})
		if err != nil {
			log.Warn("refresh cache: open store", "error", err)
			return
		}
		defer store.Close()
		if err := store.SaveWalletUTXOs(w.Address, utxos); err != nil {
			log.Warn("refresh cache: save utxos", "error", err)
		}
	}
}

func runSend(args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	walletPath := fs.String("wallet", "wallet.json", "path to wallet descriptor")
	configPath := fs.String("config", defaultConfigPath(), "path to engine config")
	to := fs.String("to", "", "destination address")
	amountBTC := fs.String("amount", "", "amount to send, in BTC")
	feeRate := fs.Float64("fee-rate", 0, "fee rate in sat/vB (0 = use the config's fee_rate_sat_vb)")
	broadcast := fs.Bool("broadcast", false, "broadcast the signed transaction instead of just printing it")
	fs.Parse(args)

	if *to == "" || *amountBTC == "" {
		fmt.Fprintln(os.Stderr, "send requires -to and -amount")
		os.Exit(1)
	}

	cfg, log := loadEngineConfig(*configPath)
	requestID := uuid.New().String()
	log = log.With("request_id", requestID)

	w, err := wallet.Load(*walletPath)
	if err != nil {
		fail(log, "load wallet", err)
	}

	destSPK, err := script.BuildSPKForAddress(*to)
	if err != nil {
		fail(log, "parse destination address", err)
	}

	amountSat, err := helpers.BTCToSatoshis(*amountBTC)
	if err != nil {
		fail(log, "parse amount", err)
	}

	client := oracleClient(cfg, log)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Oracle.TimeoutSeconds)*time.Second*time.Duration(cfg.Oracle.MaxRetries+2))
	defer cancel()

	rate := *feeRate
	if rate <= 0 {
		rate = cfg.FeeRateSatVB
	}

	collector := utxo.NewCollector(client)
	candidates, err := collector.Collect(ctx, w)
	if err != nil {
		fail(log, "collect utxos", err)
	}

	selection, err := utxo.Select(candidates, int64(amountSat), rate, w.Family())
	if err != nil {
		fail(log, "select utxos", err)
	}
	log.Info("selected inputs", "count", len(selection.Inputs), "total", selection.Total, "estimated_fee", selection.Fee)

	result, err := txn.Build(ctx, client, w, selection.Inputs, destSPK, int64(amountSat), rate, log)
	if err != nil {
		fail(log, "build transaction", err)
	}

	rawHex := result.Transaction.SerializeHex()
	log.Info("transaction built", "txid", result.Transaction.TxIDHex(), "fee", result.Fee, "change", result.Change, "vsize", result.Transaction.Vsize())

	if !*broadcast {
		fmt.Println(rawHex)
		return
	}

	txid, err := client.Broadcast(ctx, rawHex)
	if err != nil {
		fail(log, "broadcast transaction", err)
	}
	fmt.Println(txid)
}

func runBroadcastRaw(args []string) {
	fs := flag.NewFlagSet("broadcast-raw", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath(), "path to engine config")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: btctx broadcast-raw [-config path] <raw-tx-hex>")
		os.Exit(1)
	}
	rawHex := fs.Arg(0)

	cfg, log := loadEngineConfig(*configPath)
	client := oracleClient(cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Oracle.TimeoutSeconds)*time.Second*time.Duration(cfg.Oracle.MaxRetries+1))
	defer cancel()

	txid, err := client.Broadcast(ctx, rawHex)
	if err != nil {
		if bterr.Is(err, bterr.OracleError) {
			fail(log, "oracle rejected transaction", err)
		}
		fail(log, "broadcast transaction", err)
	}
	fmt.Println(txid)
}
