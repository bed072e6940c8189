// Package adapter defines the Device I/O boundary (spec §6 collaborator
// interfaces): the contract concrete Modbus TCP/RTU and ECHONET Lite
// implementations must satisfy. The concrete wire implementations
// themselves are an explicit non-goal (spec §1) — only the abstraction is
// specified here.
package adapter

import (
	"context"

	"github.com/ocpp-gateway/gateway/internal/configstore"
	"github.com/ocpp-gateway/gateway/internal/mapping"
)

// Value is a typed device-register value, decoded according to an
// OcppVariable's data_type and scale.
type Value struct {
	Float  float64
	String string
	Bool   bool
	Raw    int64
	IsEnum bool
}

// DeviceIO is implemented by a concrete protocol bridge (Modbus TCP/RTU,
// ECHONET Lite) and constructed from a resolved (DeviceConfig,
// MappingTemplate) pair (spec §6: "Device I/O adapters receive
// (DeviceConfig, resolved MappingTemplate) and expose read/write").
// Read and Write are blocking network calls to the field device, hence the
// context.Context, matching every other suspension point in the core
// (spec §5 "suspension points").
type DeviceIO interface {
	// Read returns the current typed value of the named OCPP variable.
	Read(ctx context.Context, variableName string) (Value, error)
	// Write sets the named OCPP variable to value.
	Write(ctx context.Context, variableName string, value Value) error
	// Close releases the adapter's transport.
	Close() error
}

// Factory constructs a DeviceIO for one device, given its config and
// resolved mapping template. The core never calls a concrete constructor
// directly — only through a Factory registered by the external
// collaborator providing the wire implementation.
type Factory func(device configstore.DeviceConfig, template mapping.MappingTemplate) (DeviceIO, error)
