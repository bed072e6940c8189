// Package adminapi defines the read-only boundary the HTTP admin/REST
// surface, the web UI, and the CLI consume (spec §6: "read-only accessors
// on snapshots; mutation requests route through Config Store public
// operations"). The admin HTTP surface itself is an explicit non-goal
// (spec §1); this package only specifies the interface and an illustrative,
// unwired route table an external implementation would mount.
package adminapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ocpp-gateway/gateway/internal/configstore"
	"github.com/ocpp-gateway/gateway/internal/mapping"
)

// SnapshotReader is the read-only surface external collaborators consume.
// Mutations go through configstore.Store's own public operations, never
// through this interface.
type SnapshotReader interface {
	ConfigSnapshot() *configstore.Snapshot
	TemplateCatalog() *mapping.Catalog
}

// storeReader adapts a *configstore.Store and *mapping.Manager pair to
// SnapshotReader.
type storeReader struct {
	store   *configstore.Store
	catalog *mapping.Manager
}

// NewSnapshotReader builds the canonical SnapshotReader over the process's
// Config Store and Mapping Catalog.
func NewSnapshotReader(store *configstore.Store, catalog *mapping.Manager) SnapshotReader {
	return &storeReader{store: store, catalog: catalog}
}

func (r *storeReader) ConfigSnapshot() *configstore.Snapshot { return r.store.Snapshot() }
func (r *storeReader) TemplateCatalog() *mapping.Catalog     { return r.catalog.Snapshot() }

// Handler is an illustrative, read-only gorilla/mux route table over a
// SnapshotReader. It is never mounted by cmd/gateway directly — the admin
// HTTP surface (auth, RBAC, pagination, the static web UI) is the external
// collaborator's responsibility; this exists so that collaborator has a
// concrete starting router to extend.
//
//	r := adminapi.Handler(reader)
//	http.ListenAndServe(":8081", r)
func Handler(reader SnapshotReader) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/config", configHandler(reader)).Methods("GET")
	r.HandleFunc("/api/v1/devices", devicesHandler(reader)).Methods("GET")
	r.HandleFunc("/api/v1/devices/{id}", deviceHandler(reader)).Methods("GET")
	r.HandleFunc("/api/v1/templates", templatesHandler(reader)).Methods("GET")
	r.HandleFunc("/api/v1/templates/{id}", templateHandler(reader)).Methods("GET")
	return r
}

func configHandler(reader SnapshotReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := reader.ConfigSnapshot()
		if snap == nil {
			http.Error(w, "config store not initialized", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, struct {
			System configstore.SystemConfig `json:"system"`
			Csms   configstore.CsmsConfig   `json:"csms"`
		}{snap.System, snap.Csms})
	}
}

func devicesHandler(reader SnapshotReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := reader.ConfigSnapshot()
		if snap == nil {
			http.Error(w, "config store not initialized", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, snap.Devices)
	}
}

func deviceHandler(reader SnapshotReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := reader.ConfigSnapshot()
		if snap == nil {
			http.Error(w, "config store not initialized", http.StatusServiceUnavailable)
			return
		}
		id := mux.Vars(r)["id"]
		d, ok := snap.Devices[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, d)
	}
}

func templatesHandler(reader SnapshotReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cat := reader.TemplateCatalog()
		writeJSON(w, cat.IDs())
	}
}

func templateHandler(reader SnapshotReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cat := reader.TemplateCatalog()
		id := mux.Vars(r)["id"]
		t, ok := cat.Find(id)
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, t)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
