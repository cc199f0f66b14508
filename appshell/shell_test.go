package appshell

import (
	"strings"
	"testing"

	"github.com/icao-pkd/pkdmirror/logging"
)

func TestVersionStringFormat(t *testing.T) {
	v := VersionString()
	if !strings.Contains(v, "Versions:") || !strings.Contains(v, "Golang=(") {
		t.Errorf("VersionString() = %q, missing expected sections", v)
	}
}

func TestFailOnErrorNoop(t *testing.T) {
	log := &logging.RecordingLogger{}
	// Must not exit the process or record anything when err is nil.
	FailOnError(log, nil, "should not fire")
	if len(log.Lines) != 0 {
		t.Errorf("FailOnError logged on a nil error: %v", log.Lines)
	}
}
