package allocation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/allocgo/pkg/log"
)

// loadFixture returns the one-tree example artifact as a mutable document.
func loadFixture(t *testing.T) map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "one_tree.json"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func encode(t *testing.T, doc map[string]any) []byte {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

func quietLogger() log.Logger {
	l, _ := log.NewTestLogger(log.LevelError)
	return l
}

// at walks nested maps and slices, e.g. at(doc, "trees", 0, "nodes", 1).
func at(v any, path ...any) any {
	for _, p := range path {
		switch k := p.(type) {
		case string:
			v = v.(map[string]any)[k]
		case int:
			v = v.([]any)[k]
		}
	}
	return v
}

func node(doc map[string]any, id int) map[string]any {
	return at(doc, "trees", 0, "nodes", id).(map[string]any)
}

func record(x float64, industry string) map[string]any {
	return map[string]any{"user_id": 1, "x": x, "job_industry": industry}
}

func writeArtifact(t *testing.T, path string, doc map[string]any) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, encode(t, doc), 0o644))
	require.NoError(t, os.Rename(tmp, path))
}
