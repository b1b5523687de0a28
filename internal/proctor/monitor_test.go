package proctor

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/proktor-id/proktor-backend/internal/model"
)

func newTestMonitor(probe EnvironmentProbe) (*Monitor, *[]model.Violation) {
	var got []model.Violation
	m := NewMonitor(probe, 0, func(v model.Violation) { got = append(got, v) }, zerolog.Nop())
	m.StartManual()
	return m, &got
}

func TestMonitorDetectsHiddenTab(t *testing.T) {
	probe := NewReportedProbe()
	m, got := newTestMonitor(probe)

	r := calmReport()
	r.Hidden = true
	probe.Update(r)

	m.Poll()
	if len(*got) != 1 || (*got)[0].Type != model.ViolationTabHidden {
		t.Fatalf("expected one tab-hidden violation, got %+v", *got)
	}
}

func TestMonitorGeometryAnomaly(t *testing.T) {
	probe := NewReportedProbe()
	m, got := newTestMonitor(probe)

	r := calmReport()
	r.ViewportRatio = 0.60
	probe.Update(r)

	m.Poll()
	if len(*got) != 1 || (*got)[0].Type != model.ViolationGeometryAnomaly {
		t.Fatalf("expected one geometry violation, got %+v", *got)
	}
}

func TestMonitorGeometrySuppressedWhileTyping(t *testing.T) {
	probe := NewReportedProbe()
	m, got := newTestMonitor(probe)

	// On-screen keyboard: viewport shrinks while a text input has focus.
	r := calmReport()
	r.ViewportRatio = 0.60
	r.TextInputFocused = true
	probe.Update(r)

	m.Poll()
	if len(*got) != 0 {
		t.Fatalf("expected suppression while typing, got %+v", *got)
	}
}

func TestMonitorDevtoolsHeuristic(t *testing.T) {
	probe := NewReportedProbe()
	m, got := newTestMonitor(probe)

	r := calmReport()
	r.ChromeDeltaY = 300
	probe.Update(r)

	m.Poll()
	if len(*got) != 1 || (*got)[0].Type != model.ViolationDevtools {
		t.Fatalf("expected one devtools violation, got %+v", *got)
	}

	// Exactly at the threshold: no violation.
	*got = (*got)[:0]
	r.ChromeDeltaY = ChromeDeltaThresholdPx
	probe.Update(r)
	m.Poll()
	if len(*got) != 0 {
		t.Fatalf("threshold value must not trip the heuristic, got %+v", *got)
	}
}

func TestMonitorHeuristicsFailIndependently(t *testing.T) {
	// Visibility probe is broken; geometry still works and must still fire.
	probe := &brokenProbe{report: calmReport(), hiddenErr: ErrProbeNoSample}
	probe.report.ViewportRatio = 0.5

	m, got := newTestMonitor(probe)
	m.Poll()

	if len(*got) != 1 || (*got)[0].Type != model.ViolationGeometryAnomaly {
		t.Fatalf("expected geometry violation despite broken visibility probe, got %+v", *got)
	}
}

func TestMonitorNoSampleYetIsQuiet(t *testing.T) {
	m, got := newTestMonitor(NewReportedProbe())
	m.Poll()
	if len(*got) != 0 {
		t.Fatalf("expected no violations before first report, got %+v", *got)
	}
}

func TestMonitorDiscreteEvents(t *testing.T) {
	m, got := newTestMonitor(NewReportedProbe())

	m.HandleEvent(EventCopy)
	m.HandleEvent(EventPaste)
	m.HandleEvent(EventContextMenu)
	m.HandleEvent(EventBlur)

	want := []model.ViolationType{
		model.ViolationClipboardCopy,
		model.ViolationClipboardPaste,
		model.ViolationContextMenu,
		model.ViolationFocusLoss,
	}
	if len(*got) != len(want) {
		t.Fatalf("expected %d violations, got %d", len(want), len(*got))
	}
	for i, w := range want {
		if (*got)[i].Type != w {
			t.Fatalf("event %d: expected %s, got %s", i, w, (*got)[i].Type)
		}
	}
}

func TestMonitorStopSilencesEverything(t *testing.T) {
	probe := NewReportedProbe()
	m, got := newTestMonitor(probe)

	r := calmReport()
	r.Hidden = true
	probe.Update(r)

	m.Stop()
	m.Poll()
	m.HandleEvent(EventCopy)

	if len(*got) != 0 {
		t.Fatalf("expected silence after stop, got %+v", *got)
	}

	// Stop is idempotent.
	m.Stop()
}
