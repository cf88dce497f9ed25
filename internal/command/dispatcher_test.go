package command

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agentbridge/agentbridge/internal/apierr"
	"github.com/agentbridge/agentbridge/internal/model"
	"github.com/agentbridge/agentbridge/internal/store"
)

func newTestCommandRepo(t *testing.T) *store.CommandRepo {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := store.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.NewCommandRepo(db)
}

func TestWaitForCommandReturnsImmediatelyWhenQueued(t *testing.T) {
	repo := newTestCommandRepo(t)
	d := NewDispatcher(repo, NewWaiterRegistry(), nil)

	c := &model.Command{
		CommandID: "c-1", DeploymentHash: "dep-1", Type: model.CommandHealth,
		Status: model.StatusQueued, Priority: model.PriorityNormal,
		CreatedBy: "user:tester", CreatedAt: time.Now(), UpdatedAt: time.Now(), TimeoutSeconds: 60,
	}
	if err := d.Enqueue(c); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got, err := d.WaitForCommand(context.Background(), "dep-1", 2*time.Second, "")
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got.CommandID != "c-1" {
		t.Errorf("expected c-1, got %s", got.CommandID)
	}
}

func TestWaitForCommandWakesOnLateEnqueue(t *testing.T) {
	repo := newTestCommandRepo(t)
	d := NewDispatcher(repo, NewWaiterRegistry(), nil)

	resultCh := make(chan *model.Command, 1)
	errCh := make(chan error, 1)
	go func() {
		got, err := d.WaitForCommand(context.Background(), "dep-1", 5*time.Second, "")
		resultCh <- got
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	c := &model.Command{
		CommandID: "c-late", DeploymentHash: "dep-1", Type: model.CommandHealth,
		Status: model.StatusQueued, Priority: model.PriorityNormal,
		CreatedBy: "user:tester", CreatedAt: time.Now(), UpdatedAt: time.Now(), TimeoutSeconds: 60,
	}
	if err := d.Enqueue(c); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case got := <-resultCh:
		if err := <-errCh; err != nil {
			t.Fatalf("wait returned error: %v", err)
		}
		if got.CommandID != "c-late" {
			t.Errorf("expected c-late, got %s", got.CommandID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("expected WaitForCommand to wake on late enqueue")
	}
}

func TestWaitForCommandSkipsLastCommandID(t *testing.T) {
	repo := newTestCommandRepo(t)
	d := NewDispatcher(repo, NewWaiterRegistry(), nil)

	c := &model.Command{
		CommandID: "c-already-held", DeploymentHash: "dep-1", Type: model.CommandHealth,
		Status: model.StatusQueued, Priority: model.PriorityNormal,
		CreatedBy: "user:tester", CreatedAt: time.Now(), UpdatedAt: time.Now(), TimeoutSeconds: 60,
	}
	if err := d.Enqueue(c); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	_, err := d.WaitForCommand(context.Background(), "dep-1", 200*time.Millisecond, "c-already-held")
	e, ok := apierr.As(err)
	if !ok || e.Kind != apierr.KindNotFound {
		t.Fatalf("expected excluded command to remain invisible until timeout, got %v", err)
	}

	got, err := d.WaitForCommand(context.Background(), "dep-1", 2*time.Second, "")
	if err != nil {
		t.Fatalf("wait without exclusion: %v", err)
	}
	if got.CommandID != "c-already-held" {
		t.Errorf("expected to claim c-already-held once no longer excluded, got %s", got.CommandID)
	}
}

func TestWaitForCommandTimesOutWhenEmpty(t *testing.T) {
	repo := newTestCommandRepo(t)
	d := NewDispatcher(repo, NewWaiterRegistry(), nil)

	_, err := d.WaitForCommand(context.Background(), "dep-empty", 100*time.Millisecond, "")
	e, ok := apierr.As(err)
	if !ok || e.Kind != apierr.KindNotFound {
		t.Fatalf("expected KindNotFound on timeout, got %v", err)
	}
}
