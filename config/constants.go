package constants

// Default monitoring configuration
const (
	DEFAULT_COLLECTION_INTERVAL = 60 // seconds
	DEFAULT_OTLP_ENDPOINT       = "localhost:4317"
	DEFAULT_OTLP_PROTOCOL       = OTLP_PROTOCOL_GRPC
	DEFAULT_SERVICE_NAMESPACE   = "procwatch"

	OTLP_PROTOCOL_GRPC = "grpc"
	OTLP_PROTOCOL_HTTP = "http"

	// Decimal places used when rounding aggregated percentages
	CPU_MEMORY_DECIMALS = 4
	THREAD_AVG_DECIMALS = 2
)

// Metadata registry configuration
const (
	// Schema version the registry migrates to on startup
	METADATA_SCHEMA_VERSION = "2.0"

	// Marker separating the namespace prefix from the service short name
	// in fully qualified service names (e.g. com.acme.plugin.python.mysvc)
	SERVICE_NAME_MARKER = ".python."
)

// CPU core display name styles for cpu_core_<n> metrics
const (
	CORE_STYLE_SHORT = "short" // "CPU 3"
	CORE_STYLE_LONG  = "long"  // "CPU Core 3"
)

// File paths (relative to $HOME unless absolute)
const (
	CONFIG_DIR_NAME = "/.procwatch"
	DB_FILE_NAME    = "metadata.db"
	PID_FILE        = "/tmp/procwatch.pid"
	LOG_FILE        = "/tmp/procwatch.log"
)

// OTel instrumentation identity
const (
	OTEL_SCOPE_NAME  = "procwatch.io/agent"
	OTEL_SCOPE_VER   = "1.0.0"
	OTLP_EXPORT_PATH = "/v1/metrics"
)
