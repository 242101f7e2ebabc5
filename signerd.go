// Package signerd wires the session state machine, its persistent store and
// the websocket front end into the signer daemon serving the Reef browser
// extension.
package signerd

import (
	"fmt"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"

	"github.com/reef-chain/signerd/build"
	"github.com/reef-chain/signerd/keystore"
	"github.com/reef-chain/signerd/monitoring"
	"github.com/reef-chain/signerd/session"
	"github.com/reef-chain/signerd/signerdb"
)

// Main is the true entry point for signerd. It is required since defers
// created in the top-level scope of a main method aren't executed if
// os.Exit() is called.
func Main(cfg *Config, shutdownChan <-chan struct{}) error {
	defer func() {
		_ = logRotator.Close()
	}()

	sgnrLog.Infof("Version: %s commit=%s", build.Version(), build.Commit)
	sgnrLog.Infof("Active network: %s", cfg.ActiveNetwork.Name)

	// Open the store holding the authorization registry, metadata,
	// network selection and encrypted account backups.
	db, err := signerdb.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("unable to open database: %w", err)
	}
	defer db.Close()

	// The network flag only seeds the very first run; a selection
	// persisted through the UI wins on every later start.
	persistedNetwork, err := db.FetchNetworkID()
	if err != nil {
		return err
	}
	if persistedNetwork == "" {
		err := db.PutNetworkID(string(cfg.ActiveNetwork.ID))
		if err != nil {
			return err
		}
	}

	clk := clock.NewDefaultClock()

	var sweepTicker ticker.Ticker
	if cfg.SweepInterval > 0 {
		sweepTicker = ticker.New(cfg.SweepInterval)
	}

	state, err := session.NewState(&session.Config{
		DB:                 db,
		KeyStore:           keystore.NewStore(clk),
		Clock:              clk,
		SweepTicker:        sweepTicker,
		MaxPendingRequests: cfg.MaxPendingRequests,
		PasswordTimeout:    cfg.PasswordTimeout,
	})
	if err != nil {
		return fmt.Errorf("unable to create session state: %w", err)
	}

	if err := state.Start(); err != nil {
		return err
	}
	defer func() {
		if err := state.Stop(); err != nil {
			sgnrLog.Warnf("Unable to stop session state: %v", err)
		}
	}()

	server := newServer(cfg, state)
	if err := server.Start(); err != nil {
		return err
	}
	defer func() {
		if err := server.Stop(); err != nil {
			sgnrLog.Warnf("Unable to stop server: %v", err)
		}
	}()

	if cfg.Prometheus != "" {
		err := monitoring.ExportPrometheusMetrics(cfg.Prometheus, state)
		if err != nil {
			return err
		}
	}

	// Wait for shutdown signal from the interrupt handler.
	<-shutdownChan
	sgnrLog.Info("Shutdown complete")

	return nil
}
