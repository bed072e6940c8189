package adminapi

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocpp-gateway/gateway/internal/configstore"
	"github.com/ocpp-gateway/gateway/internal/mapping"
)

// fakeSnapshotReader is a hand-rolled SnapshotReader double, standing in for
// a live Config Store / Mapping Catalog pair so the route table can be
// exercised without wiring either up.
type fakeSnapshotReader struct {
	snap *configstore.Snapshot
	cat  *mapping.Catalog
}

func (f *fakeSnapshotReader) ConfigSnapshot() *configstore.Snapshot { return f.snap }
func (f *fakeSnapshotReader) TemplateCatalog() *mapping.Catalog     { return f.cat }

func testCatalog(t *testing.T) *mapping.Catalog {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, writeTestTemplate(dir))
	m := mapping.NewManager(nil, nil, nil)
	require.NoError(t, m.LoadFromDirectory(dir))
	return m.Snapshot()
}

func TestHandlerConfigRoute(t *testing.T) {
	reader := &fakeSnapshotReader{
		snap: &configstore.Snapshot{
			System: configstore.SystemConfig{},
			Csms:   configstore.CsmsConfig{},
		},
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/config", nil)
	Handler(reader).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerConfigRouteUnavailableWhenNoSnapshot(t *testing.T) {
	reader := &fakeSnapshotReader{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/config", nil)
	Handler(reader).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlerDevicesRoutes(t *testing.T) {
	reader := &fakeSnapshotReader{
		snap: &configstore.Snapshot{
			Devices: configstore.DeviceMap{
				"dev-1": configstore.DeviceConfig{ID: "dev-1"},
			},
		},
	}
	h := Handler(reader)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/devices/dev-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/devices/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerTemplatesRoutes(t *testing.T) {
	reader := &fakeSnapshotReader{
		snap: &configstore.Snapshot{},
		cat:  testCatalog(t),
	}
	h := Handler(reader)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/templates", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/templates/base", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/templates/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func writeTestTemplate(dir string) error {
	const body = `template:
  id: base
  variables:
    - ocpp_name: A
      protocol: modbus
      mapping:
        register: 40001
        data_type: uint16
        scale: 1
`
	return os.WriteFile(dir+"/base.yaml", []byte(body), 0o644)
}
