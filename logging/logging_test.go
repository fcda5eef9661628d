package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestPackageLevelOverridesGlobal(t *testing.T) {
	SetLogLevel("error")
	defer SetLogLevel("info")

	var buf bytes.Buffer
	logger := NewWithDest(&buf, "test")
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info message logged at error level: %q", buf.String())
	}

	SetPackageLogLevel("logging_test.go", "debug")
	defer func() {
		mut.Lock()
		delete(packageLevels, "logging_test.go")
		mut.Unlock()
	}()

	logger.Debugf("visible %d", 42)
	if !strings.Contains(buf.String(), "visible 42") {
		t.Fatalf("debug message not logged with package level: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"debug", "info", "WARN", "error", "panic", "fatal"} {
		if _, ok := ParseLevel(name); !ok {
			t.Errorf("ParseLevel(%q) failed", name)
		}
	}
	if _, ok := ParseLevel("verbose"); ok {
		t.Error("ParseLevel accepted an unknown level")
	}
}

func BenchmarkWrappedLoggerNoPackages(b *testing.B) {
	SetLogLevel("error")
	logger := New("test")

	for i := 0; i < b.N; i++ {
		logger.Info("test")
	}
}

func BenchmarkWrappedLoggerWithPackage(b *testing.B) {
	SetLogLevel("error")
	SetPackageLogLevel("foo", "error")
	logger := New("test")

	for i := 0; i < b.N; i++ {
		logger.Info("test")
	}
}
