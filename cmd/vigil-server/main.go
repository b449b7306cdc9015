package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/vigilkey/vigil-backend/api/dmshandler"
	"github.com/vigilkey/vigil-backend/api/recoveryhandler"
	"github.com/vigilkey/vigil-backend/api/servers"
	"github.com/vigilkey/vigil-backend/blobstore"
	"github.com/vigilkey/vigil-backend/cmd/flags"
	"github.com/vigilkey/vigil-backend/cryptoutils"
	"github.com/vigilkey/vigil-backend/dms"
	"github.com/vigilkey/vigil-backend/identity"
	"github.com/vigilkey/vigil-backend/interfaces"
	"github.com/vigilkey/vigil-backend/kvstore"
	"github.com/vigilkey/vigil-backend/recovery"
)

var serverFlags = []cli.Flag{
	flags.PortFlag,
	flags.MetricsAddrFlag,
	flags.KVURLFlag,
	flags.BlobEndpointFlag,
	flags.IdentityEndpointFlag,
	flags.CronSecretFlag,
	flags.SignatureSkewFlag,
	flags.LogJSONFlag,
	flags.LogDebugFlag,
	flags.LogUIDFlag,
	flags.LogServiceFlag,
	flags.PprofFlag,
	flags.DrainSecondsFlag,
}

func main() {
	app := &cli.App{
		Name:  "vigil-server",
		Usage: "Serve the recovery orchestrator and dead-man's switch APIs",
		Flags: serverFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			// Key-value store.
			var store interfaces.KVStore
			kvURL := cCtx.String(flags.KVURLFlag.Name)
			if kvURL == "memory" {
				logger.Warn("Using in-process key-value store; data will not survive restarts")
				store = kvstore.NewMemoryStore()
			} else {
				redisStore, err := kvstore.NewRedisStore(kvURL, logger)
				if err != nil {
					logger.Error("Failed to create KV store", "err", err)
					return err
				}
				pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := redisStore.Ping(pingCtx); err != nil {
					logger.Error("KV store unreachable", "err", err)
					return err
				}
				store = redisStore
			}

			// Identity registry.
			resolver, err := identity.ResolverFor(cCtx.String(flags.IdentityEndpointFlag.Name), logger)
			if err != nil {
				logger.Error("Failed to create identity resolver", "err", err)
				return err
			}

			// External blob store, optional.
			var blobs interfaces.BlobStore
			if endpoint := cCtx.String(flags.BlobEndpointFlag.Name); endpoint != "" {
				blobs, err = blobstore.NewFactory(logger).BackendFor(endpoint)
				if err != nil {
					logger.Error("Failed to create blob store backend", "err", err)
					return err
				}
				logger.Info("Blob store configured", "backend", blobs.Name())
			} else {
				logger.Warn("No blob store configured; payloads use the local fallback")
			}

			cronSecret := cCtx.String(flags.CronSecretFlag.Name)
			if cronSecret == "" {
				logger.Warn("No cron secret configured; the sweep endpoint will reject all callers")
			}

			verifier := cryptoutils.NewVerifier(time.Duration(cCtx.Int64(flags.SignatureSkewFlag.Name)) * time.Second)

			recoveryService := recovery.NewService(store, logger)
			dmsService := dms.NewService(store, resolver, blobs, logger)

			recoveryHandler := recoveryhandler.NewHandler(recoveryService, verifier, logger)
			dmsHandler := dmshandler.NewHandler(dmsService, verifier, cronSecret, logger)

			server, err := servers.New(flags.ConfigureServer(cCtx, logger), recoveryHandler, dmsHandler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
