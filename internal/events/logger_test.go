package events

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestEventLoggerEmitsOneJSONLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	el := NewEventLoggerWithWriter("core", &buf)

	el.LogStartup("tcp://broker:1883", "telehealth", "H_DEFAULT")
	el.LogPipelineStarted("Watch", 4, []string{"iMEDE_watch/VitalSign"})
	el.LogShutdownBegun("SIGTERM")
	el.LogShutdownComplete(1250)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want 4", len(lines))
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("first line is not JSON: %v", err)
	}
	if first["msg"] != "startup" {
		t.Errorf("msg = %v, want startup", first["msg"])
	}
	if first["process"] != "core" {
		t.Errorf("process = %v, want core", first["process"])
	}
	if first["bus_endpoint"] != "tcp://broker:1883" {
		t.Errorf("bus_endpoint = %v", first["bus_endpoint"])
	}

	var last map[string]any
	if err := json.Unmarshal([]byte(lines[3]), &last); err != nil {
		t.Fatalf("last line is not JSON: %v", err)
	}
	if last["msg"] != "shutdown_complete" {
		t.Errorf("msg = %v, want shutdown_complete", last["msg"])
	}
}

func TestNoopEventLoggerDiscards(t *testing.T) {
	el := NoopEventLogger()
	el.LogComponentStarted("bus_adapter")
	el.LogComponentStopped("bus_adapter")
}
