// Package mapping implements the Mapping Template Catalog (component C,
// spec §4.3): a typed, inheritance-capable set of OCPP-variable to
// device-register mappings, loaded from a directory, validated,
// inheritance-flattened, and atomically hot-reloadable.
package mapping

// VariableProtocol is OcppVariable's protocol discriminant (spec §3).
type VariableProtocol string

const (
	VariableProtocolModbus      VariableProtocol = "modbus"
	VariableProtocolEchonetLite VariableProtocol = "echonet_lite"
)

// DataType enumerates both protocols' scalar encodings. Modbus and
// ECHONET Lite share most of them; uint8/int8 are ECHONET-only.
type DataType string

const (
	DataTypeUint8   DataType = "uint8"
	DataTypeInt8    DataType = "int8"
	DataTypeUint16  DataType = "uint16"
	DataTypeInt16   DataType = "int16"
	DataTypeUint32  DataType = "uint32"
	DataTypeInt32   DataType = "int32"
	DataTypeFloat32 DataType = "float32"
	DataTypeBoolean DataType = "boolean"
	DataTypeString  DataType = "string"
	DataTypeEnum    DataType = "enum"
)

func isNumeric(t DataType) bool {
	switch t {
	case DataTypeUint8, DataTypeInt8, DataTypeUint16, DataTypeInt16, DataTypeUint32, DataTypeInt32, DataTypeFloat32:
		return true
	default:
		return false
	}
}

// ModbusVariableMapping mirrors a modbus OcppVariable's protocol mapping
// (spec §3).
type ModbusVariableMapping struct {
	RegisterAddress int            `yaml:"register" json:"register" validate:"min=0"`
	DataType        DataType       `yaml:"data_type" json:"data_type" validate:"required,oneof=uint16 int16 uint32 int32 float32 boolean string enum"`
	Scale           float64        `yaml:"scale" json:"scale"`
	Unit            string         `yaml:"unit" json:"unit"`
	EnumMap         map[int]string `yaml:"enum" json:"enum"`
}

// EchonetLiteVariableMapping mirrors an echonet_lite OcppVariable's
// protocol mapping (spec §3).
type EchonetLiteVariableMapping struct {
	EPC      int            `yaml:"epc" json:"epc" validate:"min=0,max=255"`
	DataType DataType       `yaml:"data_type" json:"data_type" validate:"required,oneof=uint8 int8 uint16 int16 uint32 int32 float32 boolean string enum"`
	Scale    float64        `yaml:"scale" json:"scale"`
	Unit     string         `yaml:"unit" json:"unit"`
	EnumMap  map[int]string `yaml:"enum" json:"enum"`
}

// OcppVariable is one OCPP-name to device-register binding (spec §3), a
// tagged union over Modbus/EchonetLite selected by Protocol.
type OcppVariable struct {
	OCPPName   string           `yaml:"ocpp_name" json:"ocpp_name" validate:"required"`
	Protocol   VariableProtocol `yaml:"protocol" json:"protocol" validate:"required,oneof=modbus echonet_lite"`
	ReadOnly   bool             `yaml:"read_only" json:"read_only"`

	Modbus      *ModbusVariableMapping      `yaml:"-" json:"-"`
	EchonetLite *EchonetLiteVariableMapping `yaml:"-" json:"-"`
}

// MappingTemplate is one named, optionally-inheriting set of OcppVariables
// (spec §3). Parent is empty once the template has been flattened.
type MappingTemplate struct {
	ID          string         `yaml:"id" json:"id" validate:"required"`
	Parent      string         `yaml:"parent" json:"parent"`
	Description string         `yaml:"description" json:"description"`
	Variables   []OcppVariable `yaml:"variables" json:"variables"`
}

// Catalog itself (the immutable, flattened result of a successful load,
// plus its read-cache and hot-reload Manager) lives in catalog.go.
