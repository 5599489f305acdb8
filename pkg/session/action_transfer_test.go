// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"errors"
	"testing"

	"github.com/Thermoquad/skylink/pkg/skylink"
)

// payloadsSent counts complete records in the frames sent since the last
// takeSent
func (h *harness) payloadsSent() int {
	n := 0
	for _, ev := range h.takeSent() {
		if _, ok := ev.(*skylink.PayloadEvent); ok {
			n++
		}
	}
	return n
}

// ============================================================
// Upload Tests
// ============================================================

func TestUpload_ControlSettings(t *testing.T) {
	h := connected(t)
	cs := skylink.NewControlSettings()
	cs.MaxRollPitchControlValue = 0.6
	cs.SetCRC()

	if err := h.m.UploadControlSettings(cs); err != nil {
		t.Fatalf("upload: %v", err)
	}
	h.expectSent(sig(skylink.CmdUploadSettings, skylink.ParamStart))
	if h.sched.Running(PingTaskName) {
		t.Error("ping should stop during upload")
	}

	h.signal(skylink.CmdUploadSettings, skylink.ParamAck)
	h.expectState(ActionUploadControlSettings, "UPLOADING_DATA")
	if n := h.payloadsSent(); n != 1 {
		t.Fatalf("expected the record sent once, got %d", n)
	}

	h.signal(skylink.CmdControlSettings, skylink.ParamAck)
	h.expectState(ActionApplicationLoop, "RUNNING")
	msgs := h.expectEvents(EventMessage, 1)
	if msgs[0].Message != "Control settings uploaded successfully!" {
		t.Errorf("unexpected message %q", msgs[0].Message)
	}
	if got := h.m.ControlSettings(); got != cs {
		t.Error("uploaded settings should be stored")
	}
}

func TestUpload_RetryExhaustion(t *testing.T) {
	h := connected(t)
	if err := h.m.UploadControlSettings(skylink.NewControlSettings()); err != nil {
		t.Fatalf("upload: %v", err)
	}
	h.signal(skylink.CmdUploadSettings, skylink.ParamAck)
	h.takeSent()

	h.signal(skylink.CmdControlSettings, skylink.ParamDataInvalid)
	h.signal(skylink.CmdControlSettings, skylink.ParamTimeout)
	h.expectState(ActionUploadControlSettings, "UPLOADING_DATA")
	h.expectEvents(EventError, 0)

	h.signal(skylink.CmdControlSettings, skylink.ParamDataInvalid)
	if n := h.payloadsSent(); n != 3 {
		t.Errorf("expected 3 retransmissions, got %d", n)
	}

	errs := h.expectEvents(EventError, 1)
	var maxErr *MaxRetriesExceededError
	if !errors.As(errs[0].Err, &maxErr) || !errors.Is(errs[0].Err, ErrMaxRetriesExceeded) {
		t.Fatalf("expected MaxRetriesExceededError, got %v", errs[0].Err)
	}
	if maxErr.Attempts != MaxPayloadRetries || maxErr.Command != skylink.CmdControlSettings {
		t.Errorf("unexpected retry details: %+v", maxErr)
	}
	h.expectState(ActionApplicationLoop, "RUNNING")
	if !h.sched.Running(PingTaskName) {
		t.Error("application loop should restart the ping")
	}
}

func TestUpload_RouteContainer(t *testing.T) {
	h := connected(t)
	route := sampleRoute()
	if err := h.m.UploadRouteContainer(route); err != nil {
		t.Fatalf("upload: %v", err)
	}
	h.expectSent(sig(skylink.CmdUploadRoute, skylink.ParamStart))

	h.signal(skylink.CmdUploadRoute, skylink.ParamAck)
	h.takeSent()
	h.signal(skylink.CmdRouteContainer, skylink.ParamAck)

	h.expectEvents(EventRouteUpdated, 1)
	msgs := h.expectEvents(EventMessage, 1)
	if msgs[0].Message != "Route Container settings uploaded successfully!" {
		t.Errorf("unexpected message %q", msgs[0].Message)
	}
	h.expectState(ActionApplicationLoop, "RUNNING")
}

// ============================================================
// Download Tests
// ============================================================

func TestDownload_ControlSettings(t *testing.T) {
	h := connected(t)
	if err := h.m.DownloadControlSettings(); err != nil {
		t.Fatalf("download: %v", err)
	}
	h.expectSent(sig(skylink.CmdDownloadSettings, skylink.ParamStart))

	h.signal(skylink.CmdDownloadSettings, skylink.ParamAck)
	h.expectState(ActionDownloadControlSettings, "WAITING_FOR_DATA")

	cs := skylink.NewControlSettings()
	cs.UAVType = skylink.UAVHexacopterX
	cs.SetCRC()
	h.payload(cs)

	h.expectSent(sig(skylink.CmdControlSettings, skylink.ParamAck))
	h.expectState(ActionApplicationLoop, "RUNNING")
	if got := h.m.ControlSettings(); got == nil || got.UAVType != skylink.UAVHexacopterX {
		t.Errorf("downloaded settings not stored: %v", got)
	}
	h.expectEvents(EventControlUpdated, 1)
}

func TestDownload_RouteRetryExhaustion(t *testing.T) {
	h := connected(t)
	if err := h.m.DownloadRouteContainer(); err != nil {
		t.Fatalf("download: %v", err)
	}
	h.signal(skylink.CmdDownloadRoute, skylink.ParamAck)
	h.takeSent()

	bad := sampleRoute()
	bad.BaseTime = 99
	for i := 0; i < MaxPayloadRetries; i++ {
		h.payload(bad)
		h.expectSent(sig(skylink.CmdRouteContainer, skylink.ParamDataInvalid))
	}

	errs := h.expectEvents(EventError, 1)
	if !errors.Is(errs[0].Err, ErrMaxRetriesExceeded) {
		t.Errorf("expected ErrMaxRetriesExceeded, got %v", errs[0].Err)
	}
	h.expectState(ActionApplicationLoop, "RUNNING")
	if h.m.RouteContainer() != nil {
		t.Error("invalid route must not be stored")
	}
}

func TestDownload_WrongRecordIgnored(t *testing.T) {
	h := connected(t)
	h.m.DownloadRouteContainer()
	h.signal(skylink.CmdDownloadRoute, skylink.ParamAck)

	h.payload(skylink.NewControlSettings())
	h.expectState(ActionDownloadRouteContainer, "WAITING_FOR_DATA")

	h.payload(sampleRoute())
	h.expectState(ActionApplicationLoop, "RUNNING")
	if rc := h.m.RouteContainer(); rc == nil || len(rc.Waypoints) != 2 {
		t.Errorf("route not stored: %v", rc)
	}
}

// ============================================================
// Transfer Timeout Tests
// ============================================================

func TestUpload_StartUnanswered(t *testing.T) {
	h := connected(t)
	h.m.UploadControlSettings(skylink.NewControlSettings())
	h.expectWindow(DefaultSignalTimeout)

	h.sched.Tick(SignalTimeoutTaskName)
	h.expectSignalTimeout(ActionUploadControlSettings, skylink.CmdUploadSettings)
	h.expectState(ActionApplicationLoop, "RUNNING")
}

func TestUpload_VerdictUnanswered(t *testing.T) {
	h := connected(t)
	h.m.UploadRouteContainer(sampleRoute())
	h.signal(skylink.CmdUploadRoute, skylink.ParamAck)
	h.expectWindow(PayloadSignalTimeout)

	// a retransmission restarts the window
	h.signal(skylink.CmdRouteContainer, skylink.ParamTimeout)
	h.expectWindow(PayloadSignalTimeout)

	h.sched.Tick(SignalTimeoutTaskName)
	h.expectSignalTimeout(ActionUploadRouteContainer, skylink.CmdRouteContainer)
	h.expectState(ActionApplicationLoop, "RUNNING")
	h.expectEvents(EventRouteUpdated, 0)
}

func TestDownload_PayloadTimeout(t *testing.T) {
	h := connected(t)
	h.m.DownloadRouteContainer()
	h.expectWindow(DefaultSignalTimeout)
	h.signal(skylink.CmdDownloadRoute, skylink.ParamAck)
	h.expectWindow(PayloadSignalTimeout)
	h.takeSent()

	for i := 1; i < MaxPayloadRetries; i++ {
		h.sched.Tick(SignalTimeoutTaskName)
		h.expectSent(sig(skylink.CmdRouteContainer, skylink.ParamTimeout))
		h.expectState(ActionDownloadRouteContainer, "WAITING_FOR_DATA")
	}

	h.sched.Tick(SignalTimeoutTaskName)
	if sent := h.sentSignals(); len(sent) != 0 {
		t.Errorf("nothing should be sent when giving up, got %v", sent)
	}
	errs := h.expectEvents(EventError, 1)
	var maxErr *MaxRetriesExceededError
	if !errors.As(errs[0].Err, &maxErr) {
		t.Fatalf("expected MaxRetriesExceededError, got %v", errs[0].Err)
	}
	if maxErr.Command != skylink.CmdRouteContainer || maxErr.Attempts != MaxPayloadRetries {
		t.Errorf("unexpected retry details: %+v", maxErr)
	}
	h.expectState(ActionApplicationLoop, "RUNNING")
}

func TestDownload_TimeoutsAndRejectionsShareRetries(t *testing.T) {
	h := connected(t)
	h.m.DownloadControlSettings()
	h.signal(skylink.CmdDownloadSettings, skylink.ParamAck)

	bad := skylink.NewControlSettings()
	bad.UAVType = skylink.UAVOctocopterX
	h.payload(bad)
	h.sched.Tick(SignalTimeoutTaskName)
	h.expectState(ActionDownloadControlSettings, "WAITING_FOR_DATA")
	h.expectSent(
		sig(skylink.CmdControlSettings, skylink.ParamDataInvalid),
		sig(skylink.CmdControlSettings, skylink.ParamTimeout),
	)

	h.payload(bad)
	errs := h.expectEvents(EventError, 1)
	if !errors.Is(errs[0].Err, ErrMaxRetriesExceeded) {
		t.Errorf("expected ErrMaxRetriesExceeded, got %v", errs[0].Err)
	}
	h.expectState(ActionApplicationLoop, "RUNNING")
}

func TestDownload_RecordStopsTimeout(t *testing.T) {
	h := connected(t)
	h.m.DownloadControlSettings()
	h.signal(skylink.CmdDownloadSettings, skylink.ParamAck)
	h.payload(skylink.NewControlSettings())

	h.expectState(ActionApplicationLoop, "RUNNING")
	if h.sched.Tick(SignalTimeoutTaskName) {
		t.Error("signal timeout should be stopped once the record arrived")
	}
	h.expectEvents(EventError, 0)
}
