// Package configstore implements the Config Store (component B, spec §4.2):
// typed, validated, immutable snapshots of {SystemConfig, CsmsConfig,
// DeviceMap}, loaded from a directory root, atomically swappable, and
// hot-reloadable.
package configstore

// LogLevel is SystemConfig's log level enum (spec §3).
type LogLevel string

const (
	LogLevelTrace    LogLevel = "TRACE"
	LogLevelDebug    LogLevel = "DEBUG"
	LogLevelInfo     LogLevel = "INFO"
	LogLevelWarn     LogLevel = "WARN"
	LogLevelError    LogLevel = "ERROR"
	LogLevelCritical LogLevel = "CRITICAL"
)

// LogRotationPolicy mirrors system.log_rotation.
type LogRotationPolicy struct {
	MaxSizeMB int `yaml:"max_size_mb" json:"max_size_mb" validate:"required,min=1"`
	MaxFiles  int `yaml:"max_files" json:"max_files" validate:"required,min=1"`
}

// MetricsConfig mirrors system.metrics.
type MetricsConfig struct {
	PrometheusPort int `yaml:"prometheus_port" json:"prometheus_port" validate:"required,min=1,max=65535"`
}

// SecurityConfig mirrors system.security.
type SecurityConfig struct {
	TLSCertPath        string `yaml:"tls_cert_path" json:"tls_cert_path"`
	TLSKeyPath         string `yaml:"tls_key_path" json:"tls_key_path"`
	CACertPath         string `yaml:"ca_cert_path" json:"ca_cert_path"`
	ClientCertRequired bool   `yaml:"client_cert_required" json:"client_cert_required"`
}

// SystemConfig is the process-wide, non-CSMS-specific configuration
// (spec §3).
type SystemConfig struct {
	LogLevel     LogLevel          `yaml:"log_level" json:"log_level" validate:"required,oneof=TRACE DEBUG INFO WARN ERROR CRITICAL"`
	LogRotation  LogRotationPolicy `yaml:"log_rotation" json:"log_rotation" validate:"required"`
	Metrics      MetricsConfig     `yaml:"metrics" json:"metrics" validate:"required"`
	Security     SecurityConfig    `yaml:"security" json:"security"`
}

// CsmsConfig describes the remote CSMS and the WebSocket session policy
// toward it (spec §3, expanded per SPEC_FULL.md §3).
type CsmsConfig struct {
	URL                     string `yaml:"url" json:"url" validate:"required"`
	ReconnectIntervalSec    int    `yaml:"reconnect_interval_sec" json:"reconnect_interval_sec" validate:"required,min=1"`
	MaxReconnectAttempts    int    `yaml:"max_reconnect_attempts" json:"max_reconnect_attempts" validate:"min=0"`
	HeartbeatIntervalSec    int    `yaml:"heartbeat_interval_sec" json:"heartbeat_interval_sec" validate:"required,min=1"`
	Subprotocol             string `yaml:"subprotocol" json:"subprotocol"`
	ConnectTimeoutSec       int    `yaml:"connect_timeout_sec" json:"connect_timeout_sec"`
	MaxReconnectIntervalSec int    `yaml:"max_reconnect_interval_sec" json:"max_reconnect_interval_sec"`
}

// ApplyDefaults fills in SPEC_FULL.md §3's supplementary fields when the
// on-disk file omits them, preserving backward-compatible field names.
func (c *CsmsConfig) ApplyDefaults() {
	if c.Subprotocol == "" {
		c.Subprotocol = "ocpp2.0.1"
	}
	if c.ConnectTimeoutSec <= 0 {
		c.ConnectTimeoutSec = 10
	}
	if c.MaxReconnectIntervalSec <= 0 {
		c.MaxReconnectIntervalSec = 300
	}
	if c.MaxReconnectIntervalSec < c.ReconnectIntervalSec {
		c.MaxReconnectIntervalSec = c.ReconnectIntervalSec
	}
}

// Protocol is DeviceConfig's protocol discriminant (spec §3).
type Protocol string

const (
	ProtocolModbusTCP    Protocol = "modbus_tcp"
	ProtocolModbusRTU    Protocol = "modbus_rtu"
	ProtocolEchonetLite  Protocol = "echonet_lite"
)

// Parity is ModbusRTU's parity setting.
type Parity string

const (
	ParityNone Parity = "none"
	ParityEven Parity = "even"
	ParityOdd  Parity = "odd"
)

// ModbusTCPConnection mirrors protocol=modbus_tcp's connection block.
type ModbusTCPConnection struct {
	IP     string `yaml:"ip" json:"ip" validate:"required"`
	Port   int    `yaml:"port" json:"port" validate:"required,min=1,max=65535"`
	UnitID int    `yaml:"unit_id" json:"unit_id" validate:"min=0,max=247"`
}

// ModbusRTUConnection mirrors protocol=modbus_rtu's connection block.
type ModbusRTUConnection struct {
	Port     string `yaml:"port" json:"port" validate:"required"`
	Baud     int    `yaml:"baud" json:"baud" validate:"required,min=1"`
	DataBits int    `yaml:"data_bits" json:"data_bits"`
	StopBits int    `yaml:"stop_bits" json:"stop_bits"`
	Parity   Parity `yaml:"parity" json:"parity"`
	UnitID   int    `yaml:"unit_id" json:"unit_id" validate:"min=0,max=247"`
}

// EchonetLiteConnection mirrors protocol=echonet_lite's connection block.
type EchonetLiteConnection struct {
	IP string `yaml:"ip" json:"ip" validate:"required"`
}

// DeviceConfig is one field device (spec §3). Exactly one of ModbusTCP,
// ModbusRTU, EchonetLite is populated, selected by Protocol — a tagged sum
// type expressed as a discriminant field plus per-variant pointers rather
// than inheritance (spec §9 design note).
type DeviceConfig struct {
	ID         string   `yaml:"id" json:"id" validate:"required"`
	Template   string   `yaml:"template" json:"template" validate:"required"`
	Protocol   Protocol `yaml:"protocol" json:"protocol" validate:"required,oneof=modbus_tcp modbus_rtu echonet_lite"`
	OCPPID     string   `yaml:"ocpp_id" json:"ocpp_id" validate:"required"`

	ModbusTCP   *ModbusTCPConnection   `yaml:"-" json:"-"`
	ModbusRTU   *ModbusRTUConnection   `yaml:"-" json:"-"`
	EchonetLite *EchonetLiteConnection `yaml:"-" json:"-"`
}

// DeviceMap maps device id -> DeviceConfig, unique on id (spec §4.2).
type DeviceMap map[string]DeviceConfig

// Snapshot is the immutable value published by the Store (spec §4.2
// "snapshot() -> immutable shared handle").
type Snapshot struct {
	System  SystemConfig
	Csms    CsmsConfig
	Devices DeviceMap
}
