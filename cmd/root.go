package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"linkfetch/internal"
)

var (
	subDir       string
	downloadDir  string
	timeout      time.Duration
	maxTransfers int
	rateLimit    string
	proxyURL     string
	quiet        bool
	debug        bool
	logLevel     string
	logFile      string
	metricsAddr  string
	config       *internal.Config
)

var rootCmd = &cobra.Command{
	Use:     "linkfetch <command> [OPTIONS] <LINK>",
	Short:   "Browse and download shared folder and file links",
	Version: "v1.0.0",
	Long: `LinkFetch opens a shared folder or file link, lists its contents and
downloads a selection with live progress, pause/resume and automatic
backoff while the remote side reports the transfer quota as exhausted.

Supported links:
  file:///srv/share/             local folder
  file:///srv/share/movie.mkv    local file
  s3://bucket/prefix/            S3 (or S3 compatible) prefix
  s3://bucket/path/movie.mkv     S3 object

Examples:
  linkfetch ls s3://media/shows/
  linkfetch get --select 2,4-6 s3://media/shows/
  linkfetch get -y -r 5M --dir movies s3://media/movie.mkv
  linkfetch export s3://media/shows/ 3
  linkfetch account s3://media/shows/

Environment Variables:
  LINKFETCH_DOWNLOAD_DIR    Base directory for downloads
  LINKFETCH_TIMEOUT         Request timeout (e.g. 600 or 10m)
  LINKFETCH_MAX_TRANSFERS   Concurrent transfers (1-32)
  LINKFETCH_RATE_LIMIT      Default rate limit (e.g., 5M)
  LINKFETCH_PROXY           Proxy URL
  LINKFETCH_S3_ENDPOINT     Custom S3 endpoint
  LINKFETCH_S3_ACCESS_KEY   S3 access key (with LINKFETCH_S3_SECRET_KEY)`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfiguration(cmd); err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		if err := internal.InitLogger(config); err != nil {
			return fmt.Errorf("failed to initialize logger: %v", err)
		}

		internal.LogInfo("LinkFetch starting up")
		internal.LogDebug("Configuration loaded: transfers=%d, timeout=%s, refresh=%s, debug=%v, quiet=%v",
			config.MaxTransfers, config.RequestTimeout, config.RefreshInterval, config.EnableDebug, config.QuietMode)
		return nil
	},
}

// loadConfiguration layers defaults, LINKFETCH_* variables and explicitly set flags
func loadConfiguration(cmd *cobra.Command) error {
	config = internal.DefaultConfig()
	config.LoadFromEnv()

	flags := cmd.Flags()
	if flags.Changed("download-dir") {
		config.DownloadDir = downloadDir
	}
	if flags.Changed("timeout") {
		config.RequestTimeout = timeout
	}
	if flags.Changed("max-transfers") {
		config.MaxTransfers = maxTransfers
	}
	if flags.Changed("limit-rate") {
		config.RateLimit = rateLimit
	}
	if flags.Changed("proxy") {
		config.ProxyURL = proxyURL
	}
	if flags.Changed("metrics-addr") {
		config.MetricsAddr = metricsAddr
	}

	if debug {
		config.EnableDebug = true
		config.LogLevel = "debug"
	}
	if quiet {
		config.QuietMode = true
	}
	if logLevel != "" {
		config.LogLevel = logLevel
	}
	if logFile != "" {
		config.LogFile = logFile
	}

	return config.ValidateConfig()
}

func init() {
	config = internal.DefaultConfig()

	rootCmd.AddCommand(getCmd, lsCmd, exportCmd, accountCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&downloadDir, "download-dir", config.DownloadDir, "Base directory for downloads (env: LINKFETCH_DOWNLOAD_DIR)")
	pf.DurationVar(&timeout, "timeout", config.RequestTimeout, "Timeout for remote requests (env: LINKFETCH_TIMEOUT)")
	pf.IntVarP(&maxTransfers, "max-transfers", "t", config.MaxTransfers, "Number of concurrent transfers (1-32) (env: LINKFETCH_MAX_TRANSFERS)")
	pf.StringVarP(&rateLimit, "limit-rate", "r", "", "Bandwidth limit (e.g., 5M for 5MB/s) (env: LINKFETCH_RATE_LIMIT)")
	pf.StringVar(&proxyURL, "proxy", "", "HTTP/SOCKS proxy URL for S3 links (env: LINKFETCH_PROXY)")
	pf.BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while downloading (env: LINKFETCH_METRICS_ADDR)")

	// Logging flags
	pf.BoolVarP(&debug, "debug", "d", false, "Enable debug logging with file and line information (env: LINKFETCH_DEBUG)")
	pf.StringVar(&logLevel, "log-level", "", "Set log level (debug, info, warn, error) (env: LINKFETCH_LOG_LEVEL)")
	pf.StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr (env: LINKFETCH_LOG_FILE)")
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(os.Stderr, err)
	}
	return err
}

// printError reports a command failure. Debug mode logs the full context of
// session and validation errors at their severity.
func printError(w io.Writer, err error) {
	if debug {
		var sessionErr *internal.SessionError
		var validationErr *internal.ValidationError
		switch {
		case errors.As(err, &sessionErr):
			internal.LogSessionError(sessionErr)
			return
		case errors.As(err, &validationErr):
			internal.LogValidationError(validationErr)
			return
		}
	}
	fmt.Fprintf(w, "❌ %v\n", err)
}
