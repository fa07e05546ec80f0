package service

import (
	"context"
	"reflect"
	"testing"
	"time"

	"stationagent/internal/logger"
)

func TestPoller_DeduplicatesSwitches(t *testing.T) {
	cam, opener := newCamera(t)
	state := NewState()
	p := NewActiveDevicePoller(&scriptedPoller{ids: []int{0, 0, 1, 1, 2}}, cam, state, newFakeClock(), 300*time.Millisecond, time.Second, logger.Nop(), nil)

	for i := 0; i < 5; i++ {
		p.Poll(context.Background())
	}

	if got, want := opener.Opens(), []int{0, 1, 2}; !reflect.DeepEqual(got, want) {
		t.Errorf("opens = %v, want %v", got, want)
	}
	if id, ok := state.LastKnownActive(); !ok || id != 2 {
		t.Errorf("last known active = %d, %v", id, ok)
	}
}

func TestPoller_UnavailableLeavesState(t *testing.T) {
	cam, opener := newCamera(t)
	state := NewState()
	p := NewActiveDevicePoller(&scriptedPoller{
		ids:   []int{1, 3, 3},
		avail: []bool{true, false, true},
	}, cam, state, newFakeClock(), 300*time.Millisecond, time.Second, logger.Nop(), nil)

	p.Poll(context.Background())
	p.Poll(context.Background())
	if id, _ := state.LastKnownActive(); id != 1 {
		t.Errorf("an unavailable poll changed state to %d", id)
	}
	if id, _ := cam.ActiveID(); id != 1 {
		t.Errorf("an unavailable poll switched the device to %d", id)
	}

	p.Poll(context.Background())
	if got, want := opener.Opens(), []int{1, 3}; !reflect.DeepEqual(got, want) {
		t.Errorf("opens = %v, want %v", got, want)
	}
}

func TestPoller_RetriesAfterOpenFailure(t *testing.T) {
	cam, opener := newCamera(t)
	opener.Fail(2, true)
	state := NewState()
	p := NewActiveDevicePoller(&scriptedPoller{ids: []int{2, 2}}, cam, state, newFakeClock(), 300*time.Millisecond, time.Second, logger.Nop(), nil)

	p.Poll(context.Background())
	if _, ok := state.LastKnownActive(); ok {
		t.Error("a failed open must not update the last known id")
	}

	opener.Fail(2, false)
	p.Poll(context.Background())
	if id, ok := state.LastKnownActive(); !ok || id != 2 {
		t.Errorf("expected last known 2 after the retry, got %d, %v", id, ok)
	}
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	cam, _ := newCamera(t)
	p := NewActiveDevicePoller(&scriptedPoller{}, cam, NewState(), RealClock(), 10*time.Millisecond, 10*time.Millisecond, logger.Nop(), nil)

	task := p.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	task.Stop()

	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
	if task.Running() {
		t.Error("task should report stopped")
	}
}
