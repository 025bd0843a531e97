package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	allocerrors "github.com/YuminosukeSato/allocgo/pkg/errors"
)

func TestTestLoggerCapturesLevelsAndFields(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationLoad)
	testLogger.Warn("warning message")
	testLogger.Error("error message", fmt.Errorf("boom"), FeatureKey, "age")

	if buffer.Len() == 0 {
		t.Fatal("Expected log output, got empty string")
	}
	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		if !testLogger.ContainsMessage(msg) {
			t.Errorf("%q not found in output", msg)
		}
	}
	if !testLogger.ContainsField("number", 42.0) {
		t.Error("Expected field number=42 not found")
	}
	if !testLogger.ContainsField(ErrAttrKey, "boom") {
		t.Error("Expected leading error to be captured under the error key")
	}
	if !testLogger.ContainsField(FeatureKey, "age") {
		t.Error("Expected field after the error to be captured")
	}
}

func TestTestLoggerLevelFiltering(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelWarn)
	testLogger.Debug("hidden debug")
	testLogger.Info("hidden info")
	testLogger.Warn("visible warn")

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if testLogger.Enabled(context.Background(), LevelInfo) {
		t.Error("Info should not be enabled at warn level")
	}
}

func TestTestLoggerWith(t *testing.T) {
	base, _ := NewTestLogger(LevelInfo)
	child := base.With(ComponentKey, "registry")
	child.Info("swapped")
	base.Info("plain")

	entries, err := base.GetLogEntries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0][ComponentKey] != "registry" {
		t.Errorf("child entry missing component: %v", entries[0])
	}
	if _, ok := entries[1][ComponentKey]; ok {
		t.Errorf("parent entry should not inherit child fields: %v", entries[1])
	}
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	logger.Debug("dropped")
	logger.With(ComponentKey, "allocation").Info("artifact loaded", TreesKey, 3, "odd")
	logger.Error("reload failed", allocerrors.NewArtifactError("trees", "empty"), ArtifactPathKey, "/tmp/m.json")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", len(lines), buf.String())
	}

	var first map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if first[ComponentKey] != "allocation" || first[TreesKey] != 3.0 {
		t.Errorf("unexpected first entry: %v", first)
	}

	var second map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(fmt.Sprint(second["error"]), "invalid artifact") {
		t.Errorf("error field missing: %v", second)
	}
	if second[ArtifactPathKey] != "/tmp/m.json" {
		t.Errorf("path field missing: %v", second)
	}

	if logger.Enabled(context.Background(), LevelDebug) {
		t.Error("debug should be disabled")
	}
	if !logger.Enabled(context.Background(), LevelError) {
		t.Error("error should be enabled")
	}
}

func TestSetupLogger(t *testing.T) {
	prev := GetLogger()
	defer SetLogger(prev)
	defer allocerrors.SetZerologWarnFunc(nil)

	var buf bytes.Buffer
	if err := SetupLogger("warn", "json", &buf); err != nil {
		t.Fatal(err)
	}
	GetLogger().Info("suppressed")
	GetLoggerWithName("watcher").Warn("kept")
	allocerrors.Warn(allocerrors.NewUnreachableNodeWarning(1, []int{4}))

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, `"ml.component":"watcher"`) {
		t.Errorf("expected component field: %s", out)
	}
	if !strings.Contains(out, "UnreachableNodeWarning") {
		t.Errorf("expected warning routed to zerolog: %s", out)
	}

	if err := SetupLogger("verbose", "json", &buf); err == nil {
		t.Error("expected error for invalid level")
	}
	if err := SetupLogger("info", "xml", &buf); err == nil {
		t.Error("expected error for invalid format")
	}
}
