package allocation

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reloadEvent struct {
	model *Model
	err   error
}

func startWatcher(t *testing.T, path string, reg *Registry) <-chan reloadEvent {
	t.Helper()
	w, err := NewWatcher(path, reg, 20*time.Millisecond)
	require.NoError(t, err)

	events := make(chan reloadEvent, 8)
	w.OnReload = func(m *Model, err error) { events <- reloadEvent{m, err} }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	return events
}

func waitReload(t *testing.T, events <-chan reloadEvent) reloadEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
		return reloadEvent{}
	}
}

func TestWatcher_ReloadsOnRename(t *testing.T) {
	reg, _ := newTestRegistry(t)
	path := filepath.Join(t.TempDir(), "model.json")
	writeArtifact(t, path, loadFixture(t))
	first, err := reg.LoadFile(path)
	require.NoError(t, err)

	events := startWatcher(t, path, reg)

	doc := loadFixture(t)
	doc["base_score"] = 60.0
	writeArtifact(t, path, doc)

	ev := waitReload(t, events)
	require.NoError(t, ev.err)
	assert.NotSame(t, first, reg.Current())
	assert.NotEqual(t, first.Digest(), reg.Current().Digest())

	res, err := reg.Predict(record(12, "Finance"))
	require.NoError(t, err)
	assert.Equal(t, 80, res.FixedDeposit)
}

func TestWatcher_KeepsModelOnBrokenWrite(t *testing.T) {
	reg, _ := newTestRegistry(t)
	path := filepath.Join(t.TempDir(), "model.json")
	writeArtifact(t, path, loadFixture(t))
	first, err := reg.LoadFile(path)
	require.NoError(t, err)

	events := startWatcher(t, path, reg)

	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	ev := waitReload(t, events)
	require.Error(t, ev.err)
	assert.Nil(t, ev.model)
	assert.Same(t, first, reg.Current())
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	reg, _ := newTestRegistry(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	writeArtifact(t, path, loadFixture(t))
	_, err := reg.LoadFile(path)
	require.NoError(t, err)

	events := startWatcher(t, path, reg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))

	select {
	case ev := <-events:
		t.Fatalf("unexpected reload: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}
