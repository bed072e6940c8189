package configstore

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ocpp-gateway/gateway/internal/eventbus"
	"github.com/ocpp-gateway/gateway/internal/gwerrors"
)

// TemplateIDResolver reports whether id is a known mapping template id, so
// the Store can enforce "template id must resolve in catalog" (spec §3)
// without importing the mapping package (avoiding a config<->mapping
// import cycle, since mapping's catalog hot-reload in turn reacts to
// nothing in configstore).
type TemplateIDResolver func(id string) bool

// Store owns the single authoritative Snapshot for the process (spec §4.2,
// §9 "a process-wide handle owned by the top-level runtime; consumers
// receive it by injection, never by global accessor" — Store is meant to be
// constructed once by the runtime and passed down, not reached via a
// package-level global).
type Store struct {
	root     string
	resolver TemplateIDResolver
	bus      *eventbus.Bus
	logger   *slog.Logger

	current atomic.Pointer[Snapshot]

	mu sync.Mutex // serializes Initialize/Reload/Upsert/Remove against each other
}

// New creates an uninitialized Store. Call Initialize before Snapshot.
func New(root string, resolver TemplateIDResolver, bus *eventbus.Bus, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{root: root, resolver: resolver, bus: bus, logger: logger.With("component", "config_store")}
}

// Initialize loads system/csms/devices from root, validates, and installs
// the result as the current snapshot. On any failure the Store is left
// uninitialized (spec §4.2).
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.loadAndValidate()
	if err != nil {
		return err
	}
	s.current.Store(snap)
	return nil
}

// Snapshot returns the current immutable snapshot, or nil if Initialize has
// never succeeded.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Reload re-reads from disk into a scratch snapshot, validates it entirely,
// and only on success atomically replaces the current snapshot and notifies
// subscribers (spec §4.2 "validate-then-swap"). Returns (replaced=true, nil)
// on a successful swap, (false, nil) if reload is a no-op because nothing
// differs from the live snapshot (spec §8 "reload() called twice with no
// on-disk change is a no-op"), or (false, err) on failure — the previous
// snapshot keeps serving subscribers either way.
func (s *Store) Reload() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.loadAndValidate()
	if err != nil {
		s.logger.Error("config reload failed, keeping previous snapshot", "error", err)
		return false, err
	}

	prev := s.current.Load()
	if prev != nil && snapshotsEqual(*prev, *snap) {
		return false, nil
	}

	s.current.Store(snap)
	s.logger.Info("config reloaded")
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Topic: eventbus.TopicConfigChanged, Data: snap})
	}
	return true, nil
}

func (s *Store) loadAndValidate() (*Snapshot, error) {
	sys, err := LoadSystemConfig(s.root)
	if err != nil {
		return nil, err
	}
	csms, err := LoadCsmsConfig(s.root)
	if err != nil {
		return nil, err
	}
	devices, err := LoadDevices(s.root)
	if err != nil {
		return nil, err
	}

	snap := Snapshot{System: sys, Csms: csms, Devices: devices}
	if err := ValidateSnapshot(snap, s.knownTemplates(devices)); err != nil {
		return nil, err
	}
	return &snap, nil
}

// knownTemplates builds the id->known map ValidateSnapshot expects, or nil
// if this Store was constructed without a catalog resolver (template
// references then go unchecked at the config layer).
func (s *Store) knownTemplates(devices DeviceMap) map[string]bool {
	if s.resolver == nil {
		return nil
	}
	known := make(map[string]bool, len(devices))
	for _, d := range devices {
		known[d.Template] = s.resolver(d.Template)
	}
	return known
}

// UpsertDevice validates one DeviceConfig, persists it via SaveDevice (the
// single-device file already defining its id, else <root>/devices/<id>.yaml),
// publishes a new snapshot built on top of the
// current one, and notifies subscribers (spec §4.2).
func (s *Store) UpsertDevice(d DeviceConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ValidateDeviceConfig(d); err != nil {
		return err
	}
	if s.resolver != nil && !s.resolver(d.Template) {
		return gwerrors.Newf(gwerrors.KindConfigValidation, "template %q does not resolve in catalog", d.Template).WithField("template")
	}

	prev := s.current.Load()
	if prev == nil {
		return gwerrors.New(gwerrors.KindConfigValidation, "store not initialized")
	}

	if err := SaveDevice(s.root, d, ".yaml"); err != nil {
		return err
	}

	next := cloneSnapshot(*prev)
	next.Devices[d.ID] = d
	s.current.Store(&next)
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Topic: eventbus.TopicConfigChanged, Data: &next})
	}
	return nil
}

// RemoveDevice deletes device id from the live snapshot and its on-disk
// file, and notifies subscribers.
func (s *Store) RemoveDevice(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current.Load()
	if prev == nil {
		return gwerrors.New(gwerrors.KindConfigValidation, "store not initialized")
	}
	if _, ok := prev.Devices[id]; !ok {
		return gwerrors.Newf(gwerrors.KindConfigValidation, "unknown device id %q", id).WithField("id")
	}

	if err := RemoveDeviceFile(s.root, id); err != nil {
		return gwerrors.Wrap(gwerrors.KindConfigLoad, err, "failed to remove device file")
	}

	next := cloneSnapshot(*prev)
	delete(next.Devices, id)
	s.current.Store(&next)
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Topic: eventbus.TopicConfigChanged, Data: &next})
	}
	return nil
}

// Subscribe registers a callback for config-changed events; returns an
// opaque id for Unsubscribe.
func (s *Store) Subscribe(cb func(*Snapshot)) string {
	if s.bus == nil {
		return ""
	}
	return s.bus.Subscribe(eventbus.TopicConfigChanged, func(ev eventbus.Event) {
		if snap, ok := ev.Data.(*Snapshot); ok {
			cb(snap)
		}
	})
}

// Unsubscribe removes a previously registered callback.
func (s *Store) Unsubscribe(id string) {
	if s.bus != nil {
		s.bus.Unsubscribe(id)
	}
}

func cloneSnapshot(s Snapshot) Snapshot {
	devices := make(DeviceMap, len(s.Devices))
	for k, v := range s.Devices {
		devices[k] = v
	}
	return Snapshot{System: s.System, Csms: s.Csms, Devices: devices}
}

func snapshotsEqual(a, b Snapshot) bool {
	if a.System != b.System || a.Csms != b.Csms {
		return false
	}
	if len(a.Devices) != len(b.Devices) {
		return false
	}
	for id, da := range a.Devices {
		db, ok := b.Devices[id]
		if !ok || !devicesEqual(da, db) {
			return false
		}
	}
	return true
}

func devicesEqual(a, b DeviceConfig) bool {
	if a.ID != b.ID || a.Template != b.Template || a.Protocol != b.Protocol || a.OCPPID != b.OCPPID {
		return false
	}
	switch {
	case a.ModbusTCP != nil && b.ModbusTCP != nil:
		return *a.ModbusTCP == *b.ModbusTCP
	case a.ModbusRTU != nil && b.ModbusRTU != nil:
		return *a.ModbusRTU == *b.ModbusRTU
	case a.EchonetLite != nil && b.EchonetLite != nil:
		return *a.EchonetLite == *b.EchonetLite
	default:
		return a.ModbusTCP == nil && b.ModbusTCP == nil &&
			a.ModbusRTU == nil && b.ModbusRTU == nil &&
			a.EchonetLite == nil && b.EchonetLite == nil
	}
}
