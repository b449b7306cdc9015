// Package flags defines the CLI flags shared by the Vigil binaries, with
// environment variable bindings for container deployments.
package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/vigilkey/vigil-backend/api/servers"
	"github.com/vigilkey/vigil-backend/common"
)

var PortFlag = &cli.StringFlag{
	Name:    "port",
	Value:   "8080",
	Usage:   "port to listen on for the API",
	EnvVars: []string{"PORT"},
}

var MetricsAddrFlag = &cli.StringFlag{
	Name:    "metrics-addr",
	Value:   "127.0.0.1:8090",
	Usage:   "address to listen on for Prometheus metrics, empty to disable",
	EnvVars: []string{"METRICS_ADDR"},
}

var KVURLFlag = &cli.StringFlag{
	Name:    "kv-url",
	Value:   "redis://127.0.0.1:6379/0",
	Usage:   "key-value store connection URL, or 'memory' for an in-process store",
	EnvVars: []string{"KV_URL"},
}

var BlobEndpointFlag = &cli.StringFlag{
	Name:    "blob-endpoint",
	Usage:   "external ciphertext store URI (http(s)://, ipfs://, s3://, vault://); empty uses the local fallback only",
	EnvVars: []string{"BLOB_UPLOAD_ENDPOINT"},
}

var IdentityEndpointFlag = &cli.StringFlag{
	Name:     "identity-endpoint",
	Required: true,
	Usage:    "username to pubkey resolver URI (http(s):// endpoint or onchain://<contract>?rpc=<url>)",
	EnvVars:  []string{"IDENTITY_LOOKUP_ENDPOINT"},
}

var CronSecretFlag = &cli.StringFlag{
	Name:    "cron-secret",
	Usage:   "shared secret required by the sweep endpoint",
	EnvVars: []string{"DMS_CRON_SECRET"},
}

var SignatureSkewFlag = &cli.Int64Flag{
	Name:    "signature-skew-seconds",
	Value:   300,
	Usage:   "allowed clock skew for signed request timestamps",
	EnvVars: []string{"SIGNATURE_SKEW_SECONDS"},
}

var LogJSONFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}

var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}

var LogUIDFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "vigil-backend",
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}

var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "drain period in seconds; the drain request returns at once and logs when it ends",
}

// SetupLogger builds the process logger from the shared logging flags.
func SetupLogger(cCtx *cli.Context) *slog.Logger {
	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cCtx.Bool(LogDebugFlag.Name),
		JSON:    cCtx.Bool(LogJSONFlag.Name),
		Service: cCtx.String(LogServiceFlag.Name),
		Version: common.Version,
	})

	if cCtx.Bool(LogUIDFlag.Name) {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// ConfigureServer builds the HTTP server config from the shared flags.
func ConfigureServer(cCtx *cli.Context, logger *slog.Logger) *servers.HTTPServerConfig {
	return &servers.HTTPServerConfig{
		ListenAddr:               ":" + cCtx.String(PortFlag.Name),
		MetricsAddr:              cCtx.String(MetricsAddrFlag.Name),
		Log:                      logger,
		EnablePprof:              cCtx.Bool(PprofFlag.Name),
		DrainDuration:            time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}
