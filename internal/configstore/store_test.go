package configstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocpp-gateway/gateway/internal/eventbus"
)

func writeSystemAndCsms(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, "system.yaml"), []byte(`
system:
  log_level: INFO
  log_rotation:
    max_size_mb: 10
    max_files: 3
  metrics:
    prometheus_port: 9100
  security: {}
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "csms.yaml"), []byte(`
csms:
  url: wss://csms.example.com/ocpp
  reconnect_interval_sec: 5
  max_reconnect_attempts: 0
  heartbeat_interval_sec: 30
`), 0o644))
}

func writeDevice(t *testing.T, root, id string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "devices"), 0o755))
	body := `
device:
  id: ` + id + `
  template: tmpl-a
  protocol: modbus_tcp
  ocpp_id: EVSE-1
  connection:
    ip: 10.0.0.5
    port: 502
    unit_id: 1
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "devices", id+".yaml"), []byte(body), 0o644))
}

func alwaysKnown(string) bool { return true }

func TestStoreInitializeLoadsSnapshot(t *testing.T) {
	root := t.TempDir()
	writeSystemAndCsms(t, root)
	writeDevice(t, root, "dev-1")

	s := New(root, alwaysKnown, eventbus.New(nil), nil)
	require.NoError(t, s.Initialize())

	snap := s.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, "wss://csms.example.com/ocpp", snap.Csms.URL)
	assert.Equal(t, "ocpp2.0.1", snap.Csms.Subprotocol)
	assert.Contains(t, snap.Devices, "dev-1")
}

func TestStoreInitializeFailsOnInvalidConfig(t *testing.T) {
	root := t.TempDir()
	writeSystemAndCsms(t, root)
	require.NoError(t, os.WriteFile(filepath.Join(root, "system.yaml"), []byte("system:\n  log_level: NOPE\n"), 0o644))

	s := New(root, alwaysKnown, eventbus.New(nil), nil)
	err := s.Initialize()
	require.Error(t, err)
	assert.Nil(t, s.Snapshot())
}

func TestStoreReloadSwapsOnChangeAndNotifies(t *testing.T) {
	root := t.TempDir()
	writeSystemAndCsms(t, root)
	writeDevice(t, root, "dev-1")

	bus := eventbus.New(nil)
	s := New(root, alwaysKnown, bus, nil)
	require.NoError(t, s.Initialize())

	notified := make(chan *Snapshot, 1)
	s.Subscribe(func(snap *Snapshot) { notified <- snap })

	writeDevice(t, root, "dev-2")

	changed, err := s.Reload()
	require.NoError(t, err)
	assert.True(t, changed)

	select {
	case snap := <-notified:
		assert.Contains(t, snap.Devices, "dev-2")
	case <-time.After(time.Second):
		t.Fatal("expected a config-changed notification")
	}
}

func TestStoreReloadNoOpWhenUnchanged(t *testing.T) {
	root := t.TempDir()
	writeSystemAndCsms(t, root)
	writeDevice(t, root, "dev-1")

	s := New(root, alwaysKnown, eventbus.New(nil), nil)
	require.NoError(t, s.Initialize())

	changed, err := s.Reload()
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestStoreReloadKeepsPreviousSnapshotOnFailure(t *testing.T) {
	root := t.TempDir()
	writeSystemAndCsms(t, root)
	writeDevice(t, root, "dev-1")

	s := New(root, alwaysKnown, eventbus.New(nil), nil)
	require.NoError(t, s.Initialize())
	before := s.Snapshot()

	require.NoError(t, os.WriteFile(filepath.Join(root, "system.yaml"), []byte("system:\n  log_level: GARBAGE\n"), 0o644))

	changed, err := s.Reload()
	require.Error(t, err)
	assert.False(t, changed)
	assert.Same(t, before, s.Snapshot())
}

func TestStoreUpsertDeviceValidatesAndPersists(t *testing.T) {
	root := t.TempDir()
	writeSystemAndCsms(t, root)

	s := New(root, alwaysKnown, eventbus.New(nil), nil)
	require.NoError(t, s.Initialize())

	d := DeviceConfig{
		ID:       "dev-new",
		Template: "tmpl-a",
		Protocol: ProtocolModbusTCP,
		OCPPID:   "EVSE-9",
		ModbusTCP: &ModbusTCPConnection{IP: "10.0.0.9", Port: 502, UnitID: 2},
	}
	require.NoError(t, s.UpsertDevice(d))
	assert.Contains(t, s.Snapshot().Devices, "dev-new")

	reloaded, err := LoadDevices(root)
	require.NoError(t, err)
	assert.Contains(t, reloaded, "dev-new")
}

func TestStoreUpsertDeviceRejectsUnknownTemplate(t *testing.T) {
	root := t.TempDir()
	writeSystemAndCsms(t, root)

	s := New(root, func(string) bool { return false }, eventbus.New(nil), nil)
	require.NoError(t, s.Initialize())

	d := DeviceConfig{
		ID:        "dev-new",
		Template:  "missing-template",
		Protocol:  ProtocolModbusTCP,
		OCPPID:    "EVSE-9",
		ModbusTCP: &ModbusTCPConnection{IP: "10.0.0.9", Port: 502},
	}
	err := s.UpsertDevice(d)
	require.Error(t, err)
}

func TestStoreRemoveDevice(t *testing.T) {
	root := t.TempDir()
	writeSystemAndCsms(t, root)
	writeDevice(t, root, "dev-1")

	s := New(root, alwaysKnown, eventbus.New(nil), nil)
	require.NoError(t, s.Initialize())

	require.NoError(t, s.RemoveDevice("dev-1"))
	assert.NotContains(t, s.Snapshot().Devices, "dev-1")

	err := s.RemoveDevice("dev-1")
	assert.Error(t, err)
}
