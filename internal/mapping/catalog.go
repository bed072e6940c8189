package mapping

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ocpp-gateway/gateway/internal/eventbus"
	"github.com/ocpp-gateway/gateway/internal/watcher"
)

const findCacheSize = 256

// Catalog is the immutable, flattened template set behind a read-through
// LRU cache (spec §4.3's resolved-template lookup is O(1) against the
// authoritative map already; the cache exists so repeated Find calls from
// many Sessions across a reload boundary don't force a map lookup per call,
// mirroring the corpus's TemplateCache pattern over a parsed-artifact map).
type Catalog struct {
	templates map[string]MappingTemplate
	cache     *lru.Cache[string, MappingTemplate]
}

func newCatalog(templates map[string]MappingTemplate) *Catalog {
	cache, _ := lru.New[string, MappingTemplate](findCacheSize)
	return &Catalog{templates: templates, cache: cache}
}

// Find returns the flattened template for id, or false if absent.
func (c *Catalog) Find(id string) (MappingTemplate, bool) {
	if c == nil {
		return MappingTemplate{}, false
	}
	if t, ok := c.cache.Get(id); ok {
		return t, true
	}
	t, ok := c.templates[id]
	if ok {
		c.cache.Add(id, t)
	}
	return t, ok
}

// IDs returns every template id currently in the catalog.
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, 0, len(c.templates))
	for id := range c.templates {
		ids = append(ids, id)
	}
	return ids
}

// Contains reports whether id resolves in the catalog — the shape
// configstore.TemplateIDResolver expects.
func (c *Catalog) Contains(id string) bool {
	if c == nil {
		return false
	}
	_, ok := c.templates[id]
	return ok
}

// ChangeCallback is invoked after a successful hot-reload swap, receiving
// the path that triggered it (spec §4.3 step 4).
type ChangeCallback func(path string)

// Manager owns the live Catalog, the hot-reload registration against the
// File Watcher, and the set of change callbacks (spec §4.3 contract:
// load_from_directory, find, enable_hot_reload, disable_hot_reload,
// register_change_callback, clear_change_callbacks).
type Manager struct {
	dir     string
	watcher *watcher.Watcher
	bus     *eventbus.Bus
	logger  *slog.Logger

	current atomic.Pointer[Catalog]

	mu         sync.Mutex
	watchID    uint64
	watching   bool
	callbacks  map[string]ChangeCallback
}

// NewManager constructs an empty Manager. Call LoadFromDirectory before
// Find returns anything useful.
func NewManager(w *watcher.Watcher, bus *eventbus.Bus, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		watcher:   w,
		bus:       bus,
		logger:    logger.With("component", "mapping_catalog"),
		callbacks: make(map[string]ChangeCallback),
	}
}

// LoadFromDirectory reads, validates, and flattens every template file in
// dir and publishes the result. On any parse or invariant failure the
// catalog is left unchanged (spec §4.3).
func (m *Manager) LoadFromDirectory(dir string) error {
	cat, err := buildCatalog(dir)
	if err != nil {
		return err
	}
	m.dir = dir
	m.current.Store(cat)
	return nil
}

func buildCatalog(dir string) (*Catalog, error) {
	raw, err := loadDirectory(dir)
	if err != nil {
		return nil, err
	}
	flat, err := flatten(raw)
	if err != nil {
		return nil, err
	}
	for _, t := range flat {
		if err := validateFlattenedTemplate(t); err != nil {
			return nil, err
		}
	}
	return newCatalog(flat), nil
}

// Find delegates to the live catalog.
func (m *Manager) Find(id string) (MappingTemplate, bool) {
	return m.current.Load().Find(id)
}

// Contains reports whether id resolves in the live catalog — the shape
// configstore.TemplateIDResolver expects.
func (m *Manager) Contains(id string) bool {
	return m.current.Load().Contains(id)
}

// Snapshot returns the current Catalog handle.
func (m *Manager) Snapshot() *Catalog {
	return m.current.Load()
}

// EnableHotReload registers dir with the File Watcher; on any change it
// performs a full validate-then-swap reload (spec §4.3 hot-reload
// semantics). cb, if non-nil, is registered as an additional change
// callback alongside any already registered via RegisterChangeCallback.
func (m *Manager) EnableHotReload(dir string, cb ChangeCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watching {
		m.watcher.Remove(m.watchID)
	}
	if cb != nil {
		m.callbacks[uniqueID()] = cb
	}
	m.dir = dir
	m.watchID = m.watcher.Add(watcher.Registration{
		Path:       dir,
		Recursive:  true,
		Extensions: []string{".yaml", ".yml", ".json"},
		Callback:   m.onWatchedChange,
	})
	m.watching = true
}

// DisableHotReload stops watching the template directory.
func (m *Manager) DisableHotReload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watching {
		m.watcher.Remove(m.watchID)
		m.watching = false
	}
}

// RegisterChangeCallback adds cb to the set invoked after a successful
// hot-reload swap and returns an opaque id for it. There is no removal by
// id; ClearChangeCallbacks removes every registered callback.
func (m *Manager) RegisterChangeCallback(cb ChangeCallback) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uniqueID()
	m.callbacks[id] = cb
	return id
}

// ClearChangeCallbacks removes every registered change callback.
func (m *Manager) ClearChangeCallbacks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = make(map[string]ChangeCallback)
}

// onWatchedChange implements spec §4.3's five-step hot-reload sequence.
// Running on the File Watcher's worker, outside the watcher's registration
// lock (per watcher.Watcher's own contract), so a callback here can safely
// call back into EnableHotReload/DisableHotReload without deadlocking.
func (m *Manager) onWatchedChange(path string) {
	cat, err := buildCatalog(m.dir)
	if err != nil {
		m.logger.Error("template hot-reload failed, keeping previous catalog", "error", err, "path", path)
		return
	}

	m.current.Store(cat)
	m.logger.Info("templates reloaded", "path", path)

	m.mu.Lock()
	callbacks := make([]ChangeCallback, 0, len(m.callbacks))
	for _, cb := range m.callbacks {
		callbacks = append(callbacks, cb)
	}
	m.mu.Unlock()

	for _, cb := range callbacks {
		m.invokeCallback(cb, path)
	}
	if m.bus != nil {
		m.bus.Publish(eventbus.Event{Topic: eventbus.TopicTemplateChanged, Path: path, Data: cat})
	}
}

func (m *Manager) invokeCallback(cb ChangeCallback, path string) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("template change callback panicked", "recover", r)
		}
	}()
	cb(path)
}

func uniqueID() string {
	return uuid.NewString()
}
