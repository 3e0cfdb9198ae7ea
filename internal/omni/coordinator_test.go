package omni

import (
	"testing"
	"time"

	"github.com/omni-engine/omni/internal/action"
	"github.com/omni-engine/omni/internal/logging"
	"github.com/omni-engine/omni/internal/notify"
	"github.com/omni-engine/omni/internal/provider"
)

type recordingListener struct {
	notifications []notify.Notification
}

func (l *recordingListener) Notify(n notify.Notification) {
	l.notifications = append(l.notifications, n)
}

func newTestCoordinator(t *testing.T) (*Coordinator, *recordingListener) {
	t.Helper()
	var l recordingListener
	co, err := New(logging.Nop{}, &l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return co, &l
}

func TestStartOpensControllerAndSchedulesOnce(t *testing.T) {
	co, _ := newTestCoordinator(t)
	path := oneChunkFixture(t, 5)
	now := time.Now()

	act := action.MediaAction{Meta: action.Meta{Type: action.TypeAnim, ObjectID: 5, SourceName: path}}
	c, err := co.Start(act, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c == nil {
		t.Fatalf("expected a controller")
	}
	if co.Scheduler.Len() != 2 { // bus + one controller
		t.Fatalf("expected 2 scheduled clients, got %d", co.Scheduler.Len())
	}

	act2 := action.MediaAction{Meta: action.Meta{Type: action.TypeAnim, ObjectID: 6, SourceName: path}}
	c2, err := co.Start(act2, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c2 != c {
		t.Fatalf("expected the same controller for a repeated source")
	}
	if co.Scheduler.Len() != 2 {
		t.Fatalf("expected the controller to be scheduled only once, got %d clients", co.Scheduler.Len())
	}
}

func TestDoesEntityExistTracksStartAndDelete(t *testing.T) {
	co, _ := newTestCoordinator(t)
	path := oneChunkFixture(t, 9)
	now := time.Now()

	act := action.MediaAction{Meta: action.Meta{Type: action.TypeAnim, ObjectID: 9, SourceName: path}}

	if co.DoesEntityExist(9) {
		t.Fatalf("expected object 9 to not exist before Start")
	}

	if _, err := co.Start(act, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !co.DoesEntityExist(9) {
		t.Fatalf("expected object 9 to exist after Start")
	}

	co.DeleteObject(act)
	if co.DoesEntityExist(9) {
		t.Fatalf("expected object 9 to no longer exist after DeleteObject")
	}
}

func TestDeleteObjectEmitsEndActionNotification(t *testing.T) {
	co, l := newTestCoordinator(t)
	path := oneChunkFixture(t, 3)
	now := time.Now()

	act := action.MediaAction{Meta: action.Meta{Type: action.TypeAnim, ObjectID: 3, SourceName: path}}
	if _, err := co.Start(act, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	co.DeleteObject(act)
	co.Bus.Drain()

	var sawStart, sawEnd bool
	for _, n := range l.notifications {
		switch n.Kind {
		case notify.KindStartAction:
			sawStart = true
		case notify.KindEndAction:
			sawEnd = true
		}
	}
	if !sawStart || !sawEnd {
		t.Fatalf("expected both StartAction and EndAction notifications, got %v", l.notifications)
	}
}

func TestPauseResume(t *testing.T) {
	co, _ := newTestCoordinator(t)
	if co.IsPaused() {
		t.Fatalf("expected a fresh coordinator to not be paused")
	}
	co.Pause()
	if !co.IsPaused() {
		t.Fatalf("expected IsPaused after Pause")
	}
	co.Resume()
	if co.IsPaused() {
		t.Fatalf("expected !IsPaused after Resume")
	}
}

func TestProviderFactoryPicksDiskAboveThreshold(t *testing.T) {
	co, _ := newTestCoordinator(t)

	small := co.providerFactory(action.Meta{SizeOnDisk: 1024})()
	if _, ok := small.(*provider.RAMProvider); !ok {
		t.Fatalf("expected a RAM provider for a small source, got %T", small)
	}

	large := co.providerFactory(action.Meta{SizeOnDisk: ramResidentThreshold + 1})()
	if _, ok := large.(*provider.DiskProvider); !ok {
		t.Fatalf("expected a Disk provider for a large source, got %T", large)
	}

	unknown := co.providerFactory(action.Meta{SizeOnDisk: 0})()
	if _, ok := unknown.(*provider.RAMProvider); !ok {
		t.Fatalf("expected a RAM provider when size is unknown, got %T", unknown)
	}
}

func TestStartRejectsActionWithoutSourceName(t *testing.T) {
	co, _ := newTestCoordinator(t)
	act := action.MediaAction{Meta: action.Meta{Type: action.TypeAnim, ObjectID: 1}}
	if _, err := co.Start(act, time.Now()); err == nil {
		t.Fatalf("expected an error for an action with no source name")
	}
}
