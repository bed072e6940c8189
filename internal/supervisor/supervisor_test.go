package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ocpp-gateway/gateway/internal/configstore"
)

func TestOcppRelevantFieldsChangedDetectsConnectionChange(t *testing.T) {
	a := configstore.DeviceConfig{ID: "d1", OCPPID: "EVSE-1", Protocol: configstore.ProtocolModbusTCP, ModbusTCP: &configstore.ModbusTCPConnection{IP: "10.0.0.1", Port: 502}}
	b := configstore.DeviceConfig{ID: "d1", OCPPID: "EVSE-1", Protocol: configstore.ProtocolModbusTCP, ModbusTCP: &configstore.ModbusTCPConnection{IP: "10.0.0.2", Port: 502}}
	assert.True(t, ocppRelevantFieldsChanged(a, b))
}

func TestOcppRelevantFieldsChangedIgnoresTemplateOnlyChange(t *testing.T) {
	a := configstore.DeviceConfig{ID: "d1", OCPPID: "EVSE-1", Template: "t1", Protocol: configstore.ProtocolModbusTCP, ModbusTCP: &configstore.ModbusTCPConnection{IP: "10.0.0.1", Port: 502}}
	b := configstore.DeviceConfig{ID: "d1", OCPPID: "EVSE-1", Template: "t2", Protocol: configstore.ProtocolModbusTCP, ModbusTCP: &configstore.ModbusTCPConnection{IP: "10.0.0.1", Port: 502}}
	assert.False(t, ocppRelevantFieldsChanged(a, b))
}

func TestOcppRelevantFieldsChangedDetectsOcppIDChange(t *testing.T) {
	a := configstore.DeviceConfig{ID: "d1", OCPPID: "EVSE-1", Protocol: configstore.ProtocolEchonetLite, EchonetLite: &configstore.EchonetLiteConnection{IP: "10.0.0.1"}}
	b := configstore.DeviceConfig{ID: "d1", OCPPID: "EVSE-2", Protocol: configstore.ProtocolEchonetLite, EchonetLite: &configstore.EchonetLiteConnection{IP: "10.0.0.1"}}
	assert.True(t, ocppRelevantFieldsChanged(a, b))
}
