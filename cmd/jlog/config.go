package main

import (
	"time"

	"github.com/gourav-shinde/jlog/internal/model"
)

const (
	defaultBindHost            = "127.0.0.1"
	defaultTCPPort             = 4514
	defaultAPIPort             = 3000
	defaultMuxBufferSize       = DefaultMuxBuffer
	defaultGranularity         = model.DefaultBucketGranularity
	defaultDetectCadence       = model.DefaultDetectCadence
	defaultTopN                = model.DefaultTopN
	defaultQueryTimeout        = 30 * time.Second
	defaultInsertBatchSize     = 2000
	defaultInsertFlushInterval = 100 * time.Millisecond
	defaultInsertFlushQueue    = 64
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Input         string        `mapstructure:"input"`   // file path; empty = stdin/tcp
	Follow        bool          `mapstructure:"follow"`  // keep tailing after end of file
	Profile       string        `mapstructure:"profile"` // named profile from profiles file
	ProfilesPath  string        `mapstructure:"profiles-path"`
	Granularity   time.Duration `mapstructure:"granularity"`
	TopN          int           `mapstructure:"top-n"`
	DetectCadence time.Duration `mapstructure:"detect-cadence"`

	Host          string `mapstructure:"host"`
	TCPEnabled    bool   `mapstructure:"tcp-enabled"`
	TCPPort       int    `mapstructure:"tcp-port"`
	TCPAddr       string `mapstructure:"tcp-addr"`
	MuxBufferSize int    `mapstructure:"mux-buffer-size"`

	APIEnabled bool   `mapstructure:"api-enabled"`
	APIPort    int    `mapstructure:"api-port"`
	APIAddr    string `mapstructure:"api-addr"`

	StoreEnabled        bool          `mapstructure:"store-enabled"`
	DBPath              string        `mapstructure:"db-path"`
	QueryTimeout        time.Duration `mapstructure:"query-timeout"`
	InsertBatchSize     int           `mapstructure:"insert-batch-size"`
	InsertFlushInterval time.Duration `mapstructure:"insert-flush-interval"`
	InsertFlushQueue    int           `mapstructure:"insert-flush-queue-size"`

	SocketPath string `mapstructure:"socket-path"`
	ConfigPath string `mapstructure:"-"` // not from config file
}
