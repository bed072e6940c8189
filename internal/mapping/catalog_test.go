package mapping

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocpp-gateway/gateway/internal/eventbus"
	"github.com/ocpp-gateway/gateway/internal/watcher"
)

func writeTemplate(t *testing.T, dir, id, parent string, vars string) {
	t.Helper()
	body := "template:\n  id: " + id + "\n"
	if parent != "" {
		body += "  parent: " + parent + "\n"
	}
	body += "  variables:\n" + indentBlock(vars, "  ")
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".yaml"), []byte(body), 0o644))
}

// indentBlock adds prefix to every non-empty line of a multi-line YAML
// block, used to nest a pre-written variables list one level deeper under
// the template: wrapper key.
func indentBlock(block, prefix string) string {
	lines := strings.Split(block, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

const variableA = `  - ocpp_name: A
    protocol: modbus
    mapping:
      register: 40001
      data_type: uint16
      scale: 1
`

func TestManagerLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "base", "", variableA)

	m := NewManager(watcher.New(time.Millisecond*20, nil), eventbus.New(nil), nil)
	require.NoError(t, m.LoadFromDirectory(dir))

	tmpl, ok := m.Find("base")
	require.True(t, ok)
	require.Len(t, tmpl.Variables, 1)
	assert.Equal(t, "A", tmpl.Variables[0].OCPPName)
}

func TestManagerLoadFromDirectoryRejectsCycleAndKeepsNothing(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "t1", "t2", variableA)
	writeTemplate(t, dir, "t2", "t1", variableA)

	m := NewManager(watcher.New(time.Millisecond*20, nil), eventbus.New(nil), nil)
	err := m.LoadFromDirectory(dir)
	require.Error(t, err)
	_, ok := m.Find("t1")
	assert.False(t, ok)
}

func TestManagerHotReloadSwapsOnValidChange(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "base", "", variableA)

	w := watcher.New(time.Millisecond*20, nil)
	bus := eventbus.New(nil)
	m := NewManager(w, bus, nil)
	require.NoError(t, m.LoadFromDirectory(dir))

	w.Start()
	defer w.Stop()

	notified := make(chan string, 1)
	m.EnableHotReload(dir, func(path string) { notified <- path })

	const variableB = `  - ocpp_name: A
    protocol: modbus
    mapping:
      register: 40001
      data_type: uint16
      scale: 1
  - ocpp_name: B
    protocol: modbus
    mapping:
      register: 40002
      data_type: uint16
      scale: 1
`
	writeTemplate(t, dir, "base", "", variableB)

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("expected hot-reload callback")
	}

	tmpl, ok := m.Find("base")
	require.True(t, ok)
	assert.Len(t, tmpl.Variables, 2)
}

func TestManagerHotReloadKeepsPreviousCatalogOnInvalidChange(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "base", "", variableA)

	w := watcher.New(time.Millisecond*20, nil)
	m := NewManager(w, eventbus.New(nil), nil)
	require.NoError(t, m.LoadFromDirectory(dir))

	w.Start()
	defer w.Stop()
	m.EnableHotReload(dir, nil)

	writeTemplate(t, dir, "base", "ghost-parent", variableA)

	time.Sleep(150 * time.Millisecond)

	tmpl, ok := m.Find("base")
	require.True(t, ok)
	assert.Len(t, tmpl.Variables, 1)
}

func TestManagerClearChangeCallbacks(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "base", "", variableA)

	m := NewManager(watcher.New(time.Millisecond*20, nil), eventbus.New(nil), nil)
	require.NoError(t, m.LoadFromDirectory(dir))

	called := false
	m.RegisterChangeCallback(func(string) { called = true })
	m.ClearChangeCallbacks()
	m.onWatchedChange(dir)
	assert.False(t, called)
}
