package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	NameUnknown = "unknown"

	// viper env prefix, e.g. TRACELINK_OTLP_ENDPOINT
	EnvPrefix = "tracelink"
)

// for root
var (
	Debug = false
)

// for pkg telemetry
var (
	// spans buffered before the pipeline starts dropping
	MaxQueuedSpans = 2048

	// spans per export request
	MaxExportBatch = 512

	// background drain period
	ExportInterval = 5 * time.Second

	// per-request transport deadline
	ExportTimeout = 5 * time.Second

	// upper bound for ForceFlush before a consumer instance returns
	FlushTimeout = 4 * time.Second
)

// for pkg onboard
var (
	// existing-customer cache entries
	MaxCachedCustomers = 1024

	// consumer-side message-id dedup window
	MaxDedupMessages = 4096

	// loopback queue topic
	QueueTopic = "onboarding.processing"
)

// for DB
var (
	// test account
	TRACELINK_DEFAULT_DSN = "root:@tcp(127.0.0.1:3306)/tracelink"
)

// Telemetry holds the externally supplied constants of the export path.
type Telemetry struct {
	// OTLP-style HTTP endpoint, empty disables the network exporter
	Endpoint string
	// send-your-data credential, set as a bearer token
	APIKey string

	ServiceName    string
	ServiceVersion string
	Environment    string

	// MySQL DSN of the span archive, empty disables archiving
	ArchiveDSN string
}

// NewTelemetry reads the telemetry settings from viper.
func NewTelemetry(vp *viper.Viper) Telemetry {
	t := Telemetry{
		Endpoint:       vp.GetString("otlp-endpoint"),
		APIKey:         vp.GetString("otlp-api-key"),
		ServiceName:    vp.GetString("service-name"),
		ServiceVersion: vp.GetString("service-version"),
		Environment:    vp.GetString("environment"),
		ArchiveDSN:     vp.GetString("archive-dsn"),
	}
	if t.ArchiveDSN == "default" {
		t.ArchiveDSN = TRACELINK_DEFAULT_DSN
	}
	if t.ServiceName == "" {
		t.ServiceName = "onboarding-api"
	}
	if t.ServiceVersion == "" {
		t.ServiceVersion = "2.0.0"
	}
	return t
}

// NewViper creates a viper instance configured for tracelink.
func NewViper() *viper.Viper {
	vp := viper.New()

	// read config from a file
	vp.SetConfigName("config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")

	// read config from environment variables
	vp.SetEnvPrefix(EnvPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	vp.AutomaticEnv()
	return vp
}
