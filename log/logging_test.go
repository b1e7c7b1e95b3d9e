package log

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

type syncBuffer struct {
	sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.Lock()
	defer b.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.Lock()
	defer b.Unlock()
	return b.buf.String()
}

func TestLogging(t *testing.T) {
	out := &syncBuffer{}
	SetOutput(out)

	err := Start()
	if err != nil {
		t.Errorf("start failed: %s", err)
	}

	// set levels (static random)
	SetLogLevel(WarningLevel)
	SetLogLevel(InfoLevel)
	SetLogLevel(ErrorLevel)
	SetLogLevel(DebugLevel)
	SetLogLevel(CriticalLevel)
	SetLogLevel(TraceLevel)

	// log
	Trace("Trace")
	Debug("Debug")
	Info("Info")
	Warning("Warning")
	Error("Error")
	Critical("Critical")

	// logf
	Tracef("Trace %s", "f")
	Debugf("Debug %s", "f")
	Infof("Info %s", "f")
	Warningf("Warning %s", "f")
	Errorf("Error %s", "f")
	Criticalf("Critical %s", "f")

	// play with levels
	SetLogLevel(CriticalLevel)
	Warning("hidden warning")
	SetLogLevel(TraceLevel)

	// wait logs to be written
	time.Sleep(20 * time.Millisecond)

	written := out.String()
	for _, expected := range []string{"TRAC", "DEBU", "INFO", "WARN", "ERRO", "CRIT", "Critical f"} {
		if !strings.Contains(written, expected) {
			t.Errorf("expected %q in log output", expected)
		}
	}
	if strings.Contains(written, "hidden warning") {
		t.Error("warning should have been filtered by level critical")
	}

	Shutdown()
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	if ParseLevel("WARNING") != WarningLevel {
		t.Error("level names should be case insensitive")
	}
	if ParseLevel("verbose") != 0 {
		t.Error("unknown level names should parse to 0")
	}
	if Severity(0xFF).String() != "NONE" {
		t.Error("invalid severities should be named NONE")
	}
}
