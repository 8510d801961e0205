package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kristal/pkg/adapter"
	"github.com/m-mizutani/kristal/pkg/repository"
	"github.com/m-mizutani/kristal/pkg/utils/logging"
	"github.com/m-mizutani/kristal/pkg/utils/telemetry"
	"github.com/urfave/cli/v3"
	"google.golang.org/api/option"
	"gopkg.in/yaml.v3"
)

const (
	storeFile      = "file"
	storeMemory    = "memory"
	storeSQLite    = "sqlite"
	storeFirestore = "firestore"
	storeGCS       = "gcs"
)

// config holds configuration values
type config struct {
	configFile string

	// Agent service
	apiURL  string
	timeout time.Duration

	// Repository
	store       string
	dataDir     string
	project     string
	database    string
	credentials string
	bucket      string
	prefix      string

	// Observability
	logLevel  string
	logFile   string
	traceFile string
}

// fileConfig is the YAML form of config. Flags and environment variables
// take precedence over it.
type fileConfig struct {
	APIURL      string `yaml:"api_url"`
	Timeout     string `yaml:"timeout"`
	Store       string `yaml:"store"`
	DataDir     string `yaml:"data_dir"`
	Project     string `yaml:"project"`
	Database    string `yaml:"database"`
	Credentials string `yaml:"credentials"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	TraceFile   string `yaml:"trace_file"`
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to YAML config file",
			Sources:     cli.EnvVars("KRISTAL_CONFIG"),
			Destination: &cfg.configFile,
		},
		&cli.StringFlag{
			Name:        "api-url",
			Usage:       "Base URL of the agent service (default: " + adapter.DefaultAgentURL + ")",
			Sources:     cli.EnvVars("KRISTAL_API_URL", "NEXT_PUBLIC_API_URL"),
			Destination: &cfg.apiURL,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "Timeout of non-streaming agent calls",
			Sources:     cli.EnvVars("KRISTAL_TIMEOUT"),
			Destination: &cfg.timeout,
		},
		&cli.StringFlag{
			Name:        "store",
			Usage:       "Persistence backend: file, memory, sqlite, firestore, gcs",
			Sources:     cli.EnvVars("KRISTAL_STORE"),
			Destination: &cfg.store,
		},
		&cli.StringFlag{
			Name:        "data-dir",
			Usage:       "Directory for the file and sqlite backends",
			Sources:     cli.EnvVars("KRISTAL_DATA_DIR"),
			Destination: &cfg.dataDir,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "credentials",
			Usage:       "Google Cloud service account key file",
			Sources:     cli.EnvVars("KRISTAL_CREDENTIALS_FILE"),
			Destination: &cfg.credentials,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for the gcs backend",
			Sources:     cli.EnvVars("KRISTAL_STORAGE_BUCKET"),
			Destination: &cfg.bucket,
		},
		&cli.StringFlag{
			Name:        "prefix",
			Usage:       "Object prefix for the gcs backend",
			Sources:     cli.EnvVars("KRISTAL_STORAGE_PREFIX"),
			Destination: &cfg.prefix,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level: debug, info, warn, error",
			Sources:     cli.EnvVars("KRISTAL_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-file",
			Usage:       "Write logs to a rotated file instead of stderr",
			Sources:     cli.EnvVars("KRISTAL_LOG_FILE"),
			Destination: &cfg.logFile,
		},
		&cli.StringFlag{
			Name:        "trace-file",
			Usage:       "Export traces and metrics of agent calls to this file",
			Sources:     cli.EnvVars("KRISTAL_TRACE_FILE"),
			Destination: &cfg.traceFile,
		},
	}
}

// resolve merges the config file and built-in defaults into unset values
func (cfg *config) resolve() error {
	if cfg.configFile != "" {
		data, err := os.ReadFile(cfg.configFile)
		if err != nil {
			return goerr.Wrap(err, "failed to read config file", goerr.V("path", cfg.configFile))
		}

		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return goerr.Wrap(err, "failed to parse config file", goerr.V("path", cfg.configFile))
		}

		if cfg.timeout == 0 && fc.Timeout != "" {
			d, err := time.ParseDuration(fc.Timeout)
			if err != nil {
				return goerr.Wrap(err, "invalid timeout in config file", goerr.V("timeout", fc.Timeout))
			}
			cfg.timeout = d
		}

		fill(&cfg.apiURL, fc.APIURL)
		fill(&cfg.store, fc.Store)
		fill(&cfg.dataDir, fc.DataDir)
		fill(&cfg.project, fc.Project)
		fill(&cfg.database, fc.Database)
		fill(&cfg.credentials, fc.Credentials)
		fill(&cfg.bucket, fc.Bucket)
		fill(&cfg.prefix, fc.Prefix)
		fill(&cfg.logLevel, fc.LogLevel)
		fill(&cfg.logFile, fc.LogFile)
		fill(&cfg.traceFile, fc.TraceFile)
	}

	fill(&cfg.apiURL, adapter.DefaultAgentURL)
	fill(&cfg.store, storeFile)
	fill(&cfg.database, "(default)")
	fill(&cfg.prefix, "kristal")
	fill(&cfg.logLevel, "warn")
	if cfg.timeout == 0 {
		cfg.timeout = adapter.DefaultAgentTimeout
	}
	if cfg.dataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return goerr.Wrap(err, "failed to locate user config directory, set --data-dir")
		}
		cfg.dataDir = filepath.Join(base, "kristal")
	}

	return nil
}

func fill(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}

// setup installs the logger and, when requested, the trace exporter. The
// returned function flushes them.
func (cfg *config) setup(ctx context.Context) (context.Context, func(), error) {
	if err := cfg.resolve(); err != nil {
		return ctx, func() {}, err
	}

	var closers []io.Closer
	var w io.Writer = os.Stderr
	if cfg.logFile != "" {
		fw := logging.NewFileWriter(cfg.logFile)
		closers = append(closers, fw)
		w = fw
	}
	logger := logging.New(cfg.logLevel, w)
	logging.SetDefault(logger)
	ctx = logging.With(ctx, logger)

	var shutdown func(context.Context) error
	if cfg.traceFile != "" {
		tw := logging.NewFileWriter(cfg.traceFile)
		closers = append(closers, tw)
		fn, err := telemetry.Init(ctx, tw)
		if err != nil {
			for _, c := range closers {
				c.Close()
			}
			return ctx, func() {}, err
		}
		shutdown = fn
	}

	cleanup := func() {
		if shutdown != nil {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				logger.Warn("failed to flush telemetry", "error", err)
			}
		}
		for _, c := range closers {
			c.Close()
		}
	}
	return ctx, cleanup, nil
}

func (cfg *config) clientOptions() []option.ClientOption {
	if cfg.credentials == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.credentials)}
}

// newRepository creates the persistence backend selected by --store
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, func(), error) {
	noop := func() {}

	switch cfg.store {
	case storeFile:
		repo, err := repository.NewFile(cfg.dataDir)
		if err != nil {
			return nil, noop, goerr.Wrap(err, "failed to create file repository")
		}
		return repo, noop, nil

	case storeMemory:
		return repository.NewMemory(), noop, nil

	case storeSQLite:
		if err := os.MkdirAll(cfg.dataDir, 0o700); err != nil {
			return nil, noop, goerr.Wrap(err, "failed to create data directory", goerr.V("dir", cfg.dataDir))
		}
		repo, err := repository.NewSQLite(ctx, filepath.Join(cfg.dataDir, "kristal.db"))
		if err != nil {
			return nil, noop, goerr.Wrap(err, "failed to create sqlite repository")
		}
		return repo, func() { repo.Close() }, nil

	case storeFirestore:
		repo, err := repository.NewFirestore(ctx, cfg.project, cfg.database, cfg.clientOptions()...)
		if err != nil {
			return nil, noop, goerr.Wrap(err, "failed to create firestore repository")
		}
		return repo, func() { repo.Close() }, nil

	case storeGCS:
		storage, err := adapter.NewStorage(ctx, cfg.bucket, cfg.clientOptions()...)
		if err != nil {
			return nil, noop, goerr.Wrap(err, "failed to create storage adapter")
		}
		repo := repository.NewObject(storage, cfg.prefix)
		return repo, func() { repo.Close() }, nil

	default:
		return nil, noop, goerr.New("unknown store", goerr.V("store", cfg.store))
	}
}

// newAgent creates the agent service client
func (cfg *config) newAgent() adapter.Agent {
	return adapter.NewAgent(cfg.apiURL, adapter.WithTimeout(cfg.timeout))
}
