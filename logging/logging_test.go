package logging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNopBeforeInit(t *testing.T) {
	Set(nil)
	if L() == nil || S() == nil {
		t.Fatal("Expected a usable logger before Init")
	}
	L().Info("dropped")
}

func TestInitToFile(t *testing.T) {
	defer Set(nil)
	p := filepath.Join(t.TempDir(), "archivekit.log")

	if err := Init(Config{Level: "warn", Format: "json", OutputPath: p}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	L().Info("hidden")
	Named("store").Warn("visible", zap.String("backend", "localdir"))
	Sync()

	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Error("Expected info message to be filtered at warn level")
	}
	if !strings.Contains(out, `"logger":"store"`) || !strings.Contains(out, `"backend":"localdir"`) {
		t.Errorf("Unexpected log output: %s", out)
	}

	SetLevel("debug")
	if !L().Core().Enabled(zapcore.DebugLevel) {
		t.Error("Expected debug level after SetLevel")
	}
	SetLevel("bogus")
	if !L().Core().Enabled(zapcore.DebugLevel) {
		t.Error("Invalid level should leave the level unchanged")
	}
	SetLevel("info")
}

func TestOperationID(t *testing.T) {
	defer Set(nil)
	core, logs := observer.New(zapcore.InfoLevel)
	Set(zap.New(core))

	ctx := context.Background()
	if OperationID(ctx) != "" {
		t.Error("Expected empty operation id")
	}

	ctx = WithOperationID(ctx, "op-1")
	if OperationID(ctx) != "op-1" {
		t.Errorf("Unexpected operation id %s", OperationID(ctx))
	}
	WithContext(ctx).Info("tagged")

	entries := logs.FilterMessage("tagged").All()
	if len(entries) != 1 || entries[0].ContextMap()["operation_id"] != "op-1" {
		t.Errorf("Expected tagged entry, got %v", entries)
	}

	if WithContext(context.Background()) != L() {
		t.Error("Expected global logger without a context logger")
	}
}
