package mapping

import (
	"github.com/go-playground/validator/v10"

	"github.com/ocpp-gateway/gateway/internal/gwerrors"
)

var validatorInstance = validator.New()

var modbusDataTypes = map[DataType]bool{
	DataTypeUint16: true, DataTypeInt16: true, DataTypeUint32: true, DataTypeInt32: true,
	DataTypeFloat32: true, DataTypeBoolean: true, DataTypeString: true, DataTypeEnum: true,
}

var echonetDataTypes = map[DataType]bool{
	DataTypeUint8: true, DataTypeInt8: true, DataTypeUint16: true, DataTypeInt16: true,
	DataTypeUint32: true, DataTypeInt32: true, DataTypeFloat32: true, DataTypeBoolean: true,
	DataTypeString: true, DataTypeEnum: true,
}

// validateVariable checks one OcppVariable against spec §3's per-variant
// rules: scale > 0 for numeric types, enum_map non-empty when data_type is
// enum, epc/register ranges, and that the declared protocol's variant is
// populated. An enum_map on a non-enum type, or a second populated variant,
// is not rejected.
func validateVariable(v OcppVariable) error {
	if v.OCPPName == "" {
		return gwerrors.New(gwerrors.KindConfigValidation, "variable: ocpp_name is required").WithField("ocpp_name")
	}

	switch v.Protocol {
	case VariableProtocolModbus:
		if v.Modbus == nil {
			return gwerrors.Newf(gwerrors.KindConfigValidation, "variable %q: protocol modbus but no modbus mapping set", v.OCPPName).WithField("mapping")
		}
		return validateModbusMapping(v.OCPPName, *v.Modbus)
	case VariableProtocolEchonetLite:
		if v.EchonetLite == nil {
			return gwerrors.Newf(gwerrors.KindConfigValidation, "variable %q: protocol echonet_lite but no echonet_lite mapping set", v.OCPPName).WithField("mapping")
		}
		return validateEchonetMapping(v.OCPPName, *v.EchonetLite)
	default:
		return gwerrors.Newf(gwerrors.KindConfigValidation, "variable %q: unknown protocol %q", v.OCPPName, v.Protocol).WithField("protocol")
	}
}

func validateModbusMapping(name string, m ModbusVariableMapping) error {
	if err := validatorInstance.Struct(m); err != nil {
		return gwerrors.Newf(gwerrors.KindConfigValidation, "variable %q: %v", name, err).WithField("register_address")
	}
	if !modbusDataTypes[m.DataType] {
		return gwerrors.Newf(gwerrors.KindConfigValidation, "variable %q: invalid modbus data_type %q", name, m.DataType).WithField("data_type")
	}
	if isNumeric(m.DataType) && m.Scale <= 0 {
		return gwerrors.Newf(gwerrors.KindConfigValidation, "variable %q: scale must be > 0 for numeric data_type %q", name, m.DataType).WithField("scale")
	}
	if m.DataType == DataTypeEnum && len(m.EnumMap) == 0 {
		return gwerrors.Newf(gwerrors.KindConfigValidation, "variable %q: enum_map must be non-empty for data_type enum", name).WithField("enum_map")
	}
	return nil
}

func validateEchonetMapping(name string, m EchonetLiteVariableMapping) error {
	if err := validatorInstance.Struct(m); err != nil {
		return gwerrors.Newf(gwerrors.KindConfigValidation, "variable %q: %v", name, err).WithField("epc")
	}
	if !echonetDataTypes[m.DataType] {
		return gwerrors.Newf(gwerrors.KindConfigValidation, "variable %q: invalid echonet_lite data_type %q", name, m.DataType).WithField("data_type")
	}
	if isNumeric(m.DataType) && m.Scale <= 0 {
		return gwerrors.Newf(gwerrors.KindConfigValidation, "variable %q: scale must be > 0 for numeric data_type %q", name, m.DataType).WithField("scale")
	}
	if m.DataType == DataTypeEnum && len(m.EnumMap) == 0 {
		return gwerrors.Newf(gwerrors.KindConfigValidation, "variable %q: enum_map must be non-empty for data_type enum", name).WithField("enum_map")
	}
	return nil
}

// validateFlattenedTemplate checks the post-flattening invariant that OCPP
// names are unique within the template, and validates every variable
// (spec §3 "every variable in T satisfies its own validator").
func validateFlattenedTemplate(t MappingTemplate) error {
	seen := make(map[string]bool, len(t.Variables))
	for _, v := range t.Variables {
		if seen[v.OCPPName] {
			return gwerrors.Newf(gwerrors.KindConfigValidation, "template %q: duplicate ocpp_name %q after flattening", t.ID, v.OCPPName).WithField("ocpp_name")
		}
		seen[v.OCPPName] = true
		if err := validateVariable(v); err != nil {
			return err
		}
	}
	return nil
}
