// Package supervisor implements the Session Supervisor (component E, spec
// §4.5): owns one WebSocket Session per enabled DeviceConfig, reacts to
// Config Store and Mapping Catalog change notifications, and shuts down
// cleanly.
package supervisor

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ocpp-gateway/gateway/internal/backoff"
	"github.com/ocpp-gateway/gateway/internal/configstore"
	"github.com/ocpp-gateway/gateway/internal/mapping"
	"github.com/ocpp-gateway/gateway/internal/metrics"
	"github.com/ocpp-gateway/gateway/internal/session"
)

// Supervisor constructs one Session per enabled DeviceConfig, associated
// with the resolved flattened template (spec §4.5).
type Supervisor struct {
	store   *configstore.Store
	catalog *mapping.Manager
	reg     *metrics.Registry
	logger  *slog.Logger
	limiter *rate.Limiter
	clock   backoff.Clock

	mu       sync.Mutex
	sessions map[string]*session.Session
	devices  map[string]configstore.DeviceConfig

	cfgSubID  string
	tmplSubID string
}

// New constructs an unstarted Supervisor.
func New(store *configstore.Store, catalog *mapping.Manager, reg *metrics.Registry, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = metrics.Noop()
	}
	return &Supervisor{
		store:   store,
		catalog: catalog,
		reg:     reg,
		logger:  logger.With("component", "supervisor"),
		// A shared fleet-wide reconnect limiter (spec §9's design notes call
		// out throttling reconnect storms across many Sessions); 10/s with a
		// burst of 10 is generous for a charge-point fleet's scale.
		limiter:  rate.NewLimiter(rate.Limit(10), 10),
		clock:    backoff.RealClock{},
		sessions: make(map[string]*session.Session),
		devices:  make(map[string]configstore.DeviceConfig),
	}
}

// Start creates Sessions for the Config Store's current snapshot and
// subscribes to future config and template changes.
func (sv *Supervisor) Start() {
	snap := sv.store.Snapshot()
	if snap != nil {
		sv.mu.Lock()
		for _, d := range snap.Devices {
			sv.startSessionLocked(d, snap.Csms, snap.System)
		}
		sv.mu.Unlock()
	}

	sv.cfgSubID = sv.store.Subscribe(sv.onConfigChanged)
	sv.tmplSubID = sv.catalog.RegisterChangeCallback(sv.onTemplateChanged)
}

// Shutdown closes every Session and waits for its terminal state before
// returning (spec §4.5).
func (sv *Supervisor) Shutdown() {
	sv.store.Unsubscribe(sv.cfgSubID)

	sv.mu.Lock()
	sessions := make([]*session.Session, 0, len(sv.sessions))
	for _, s := range sv.sessions {
		sessions = append(sessions, s)
	}
	sv.sessions = make(map[string]*session.Session)
	sv.devices = make(map[string]configstore.DeviceConfig)
	sv.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *session.Session) {
			defer wg.Done()
			s.Close("shutdown")
		}(s)
	}
	wg.Wait()
}

// Session returns the live Session for a device id, if any.
func (sv *Supervisor) Session(deviceID string) (*session.Session, bool) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	s, ok := sv.sessions[deviceID]
	return s, ok
}

func (sv *Supervisor) onConfigChanged(snap *configstore.Snapshot) {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	for id := range sv.sessions {
		if _, stillExists := snap.Devices[id]; !stillExists {
			sv.stopSessionLocked(id)
		}
	}

	for id, d := range snap.Devices {
		prev, existed := sv.devices[id]
		switch {
		case !existed:
			sv.startSessionLocked(d, snap.Csms, snap.System)
		case ocppRelevantFieldsChanged(prev, d):
			sv.stopSessionLocked(id)
			sv.startSessionLocked(d, snap.Csms, snap.System)
		default:
			sv.devices[id] = d
			if s, ok := sv.sessions[id]; ok && prev.Template != d.Template {
				if t, found := sv.catalog.Find(d.Template); found {
					s.SetTemplate(t)
				}
			}
		}
	}
}

func (sv *Supervisor) onTemplateChanged(path string) {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	for id, d := range sv.devices {
		s, ok := sv.sessions[id]
		if !ok {
			continue
		}
		if t, found := sv.catalog.Find(d.Template); found {
			s.SetTemplate(t)
		}
	}
}

func (sv *Supervisor) startSessionLocked(d configstore.DeviceConfig, csms configstore.CsmsConfig, sys configstore.SystemConfig) {
	deviceID := d.ID
	policy := backoff.NewPolicy(
		time.Duration(csms.ReconnectIntervalSec)*time.Second,
		time.Duration(csms.MaxReconnectIntervalSec)*time.Second,
	)

	cfg := session.Config{
		DeviceID:                deviceID,
		URL:                     csms.URL,
		Subprotocol:             csms.Subprotocol,
		ReconnectIntervalSec:    csms.ReconnectIntervalSec,
		MaxReconnectIntervalSec: csms.MaxReconnectIntervalSec,
		MaxReconnectAttempts:    csms.MaxReconnectAttempts,
		ConnectTimeoutSec:       csms.ConnectTimeoutSec,
		Security: session.SecurityConfig{
			TLSCertPath:        sys.Security.TLSCertPath,
			TLSKeyPath:         sys.Security.TLSKeyPath,
			CACertPath:         sys.Security.CACertPath,
			ClientCertRequired: sys.Security.ClientCertRequired,
		},
	}

	s, err := session.New(cfg, &policy, sv.clock, sv.limiter, sv.reg, sv.logger, session.Callbacks{})
	if err != nil {
		sv.logger.Error("failed to construct session", "device_id", deviceID, "error", err)
		return
	}
	if t, found := sv.catalog.Find(d.Template); found {
		s.SetTemplate(t)
	}

	sv.sessions[deviceID] = s
	sv.devices[deviceID] = d
	s.Connect()
}

func (sv *Supervisor) stopSessionLocked(deviceID string) {
	s, ok := sv.sessions[deviceID]
	if !ok {
		return
	}
	delete(sv.sessions, deviceID)
	delete(sv.devices, deviceID)
	go s.Close("device removed or modified")
}

// ocppRelevantFieldsChanged reports whether a config change to d requires
// closing and recreating its Session (spec §4.5: "for modified ids whose
// OCPP-relevant fields changed, close and recreate"). A change of template
// id alone does not recreate the Session: onConfigChanged hands it the new
// template, and onTemplateChanged handles later catalog reloads.
func ocppRelevantFieldsChanged(prev, next configstore.DeviceConfig) bool {
	if prev.OCPPID != next.OCPPID || prev.Protocol != next.Protocol {
		return true
	}
	switch next.Protocol {
	case configstore.ProtocolModbusTCP:
		return !equalPtr(prev.ModbusTCP, next.ModbusTCP)
	case configstore.ProtocolModbusRTU:
		return !equalPtr(prev.ModbusRTU, next.ModbusRTU)
	case configstore.ProtocolEchonetLite:
		return !equalPtr(prev.EchonetLite, next.EchonetLite)
	default:
		return true
	}
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
