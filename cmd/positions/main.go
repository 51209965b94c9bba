// Command positions pulls the account's trade history from the CLOB,
// reconciles it into per-market positions with PnL, and prints the
// result. With -cache the fetched history is also written to the local
// store; with -offline reconciliation runs from that store instead of
// the network.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/polyclob/polyclob/params"
	"github.com/polyclob/polyclob/pkg/clob"
	"github.com/polyclob/polyclob/pkg/crypto"
	"github.com/polyclob/polyclob/pkg/positions"
	"github.com/polyclob/polyclob/pkg/storage"
	"github.com/polyclob/polyclob/pkg/util"
)

func main() {
	var (
		envPath = flag.String("env", "", "path to .env file")
		dbPath  = flag.String("db", "polyclob.db", "local store path")
		market  = flag.String("market", "", "restrict to one market")
		mark    = flag.Bool("mark", false, "mark long positions against the live midpoint")
		cache   = flag.Bool("cache", false, "cache fetched trades in the local store")
		offline = flag.Bool("offline", false, "reconcile from the local store, no network")
		timeout = flag.Duration("timeout", 2*time.Minute, "overall deadline")
	)
	flag.Parse()

	log, err := util.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "positions: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if err := run(*envPath, *dbPath, *market, *mark, *cache, *offline, *timeout, log); err != nil {
		log.Error("reconciliation failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(envPath, dbPath, market string, mark, cache, offline bool, timeout time.Duration, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg := params.LoadFromEnv(envPath)
	signer, err := crypto.FromPrivateKeyHex(cfg.PrivateKey)
	if err != nil {
		return err
	}

	store, err := storage.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	client := clob.New(cfg, signer, log)

	var trades []positions.Trade
	if offline {
		cached, ok, err := store.Trades(signer.Address())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no cached trades for %s, run without -offline first", signer.Address().Hex())
		}
		trades = cached
	} else {
		if !client.HasCredentials() {
			if creds, ok, err := store.Credentials(signer.Address()); err == nil && ok {
				client.SetCredentials(creds)
			}
		}
		resp, err := client.Trades(ctx, clob.TradeQuery{Market: market})
		if err != nil {
			return err
		}
		log.Info("fetched trade history",
			zap.Int("trades", len(resp.Data)), zap.String("address", signer.Address().Hex()))
		trades = resp.ForReconciliation()

		if cache {
			if err := store.SaveTrades(signer.Address(), trades); err != nil {
				return err
			}
		}
	}

	var oracle positions.PriceOracle
	if mark && !offline {
		oracle = clob.MidpointOracle{Client: client}
	}

	recon := positions.NewReconciler(log)
	out, err := recon.Reconcile(ctx, trades, oracle)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
