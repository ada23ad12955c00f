package history

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/accio/accio/internal/backend/types"
	"github.com/accio/accio/internal/reconcile"
	"github.com/accio/accio/internal/testutil"
)

func newTestService(t *testing.T) (*Service, *testutil.TestDB) {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	return NewService(tdb.Conn, DefaultRetentionSettings(), tdb.Logger), tdb
}

func TestHistoryService_Create(t *testing.T) {
	service, tdb := newTestService(t)
	defer tdb.Close()

	entry, err := service.Create(context.Background(), CreateInput{
		EventType: EventTypeCompleted,
		TaskID:    "abc",
		URL:       "https://example.com/v",
		ToStatus:  "COMPLETED",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if entry.ID == 0 {
		t.Error("Create() entry.ID = 0, want non-zero")
	}
	if entry.CreatedAt == "" {
		t.Error("Create() CreatedAt is empty")
	}
}

func TestHistoryService_ListPaginationAndFilter(t *testing.T) {
	service, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := service.Create(ctx, CreateInput{EventType: EventTypeQueued, TaskID: "q"}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	if _, err := service.Create(ctx, CreateInput{EventType: EventTypeFailed, TaskID: "f", Detail: "403"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	resp, err := service.List(ctx, ListOptions{Page: 1, PageSize: 4})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if resp.TotalCount != 6 {
		t.Errorf("TotalCount = %d, want 6", resp.TotalCount)
	}
	if resp.TotalPages != 2 {
		t.Errorf("TotalPages = %d, want 2", resp.TotalPages)
	}
	if len(resp.Items) != 4 {
		t.Fatalf("len(Items) = %d, want 4", len(resp.Items))
	}
	if resp.Items[0].EventType != EventTypeFailed {
		t.Errorf("newest entry = %q, want %q", resp.Items[0].EventType, EventTypeFailed)
	}

	failed, err := service.List(ctx, ListOptions{EventType: string(EventTypeFailed)})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if failed.TotalCount != 1 || failed.Items[0].Detail != "403" {
		t.Errorf("filtered list = %+v, want one failed entry with detail", failed)
	}
}

func TestHistoryService_RecordCommit(t *testing.T) {
	service, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	store := reconcile.NewStore(tdb.Logger)
	store.OnCommit(service.RecordCommit)

	store.Apply([]types.Task{testutil.Task("old", types.TaskStatusCompleted)})

	resp, _ := service.List(ctx, ListOptions{})
	if resp.TotalCount != 0 {
		t.Fatalf("initial commit journaled %d entries, want 0", resp.TotalCount)
	}

	store.Apply([]types.Task{
		testutil.Task("new", types.TaskStatusPending),
		testutil.Task("old", types.TaskStatusCompleted),
	})

	failed := testutil.Task("new", types.TaskStatusFailed)
	failed.ErrorMsg = "HTTP Error 403"
	store.Apply([]types.Task{failed, testutil.Task("old", types.TaskStatusDownloading)})

	resp, err := service.List(ctx, ListOptions{PageSize: 100})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	counts := map[EventType]int{}
	for _, e := range resp.Items {
		counts[e.EventType]++
		if e.EventType == EventTypeFailed && e.Detail != "HTTP Error 403" {
			t.Errorf("failed detail = %q", e.Detail)
		}
	}
	if counts[EventTypeQueued] != 1 {
		t.Errorf("queued events = %d, want 1", counts[EventTypeQueued])
	}
	if counts[EventTypeFailed] != 1 {
		t.Errorf("failed events = %d, want 1", counts[EventTypeFailed])
	}
	if counts[EventTypeConsistencyWarning] != 1 {
		t.Errorf("consistency warnings = %d, want 1", counts[EventTypeConsistencyWarning])
	}
}

func TestHistoryService_CleanupOldEntries(t *testing.T) {
	service, tdb := newTestService(t)
	defer tdb.Close()
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now.AddDate(0, 0, -40) }
	if _, err := service.Create(ctx, CreateInput{EventType: EventTypeQueued, TaskID: "stale"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	service.now = func() time.Time { return now }
	if _, err := service.Create(ctx, CreateInput{EventType: EventTypeQueued, TaskID: "fresh"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := service.CleanupOldEntries(ctx); err != nil {
		t.Fatalf("CleanupOldEntries() error = %v", err)
	}

	resp, _ := service.List(ctx, ListOptions{})
	if resp.TotalCount != 1 || resp.Items[0].TaskID != "fresh" {
		t.Errorf("after cleanup = %+v, want only the fresh entry", resp.Items)
	}
}

func TestHistoryService_CleanupDisabled(t *testing.T) {
	tdb := testutil.NewTestDB(t)
	defer tdb.Close()
	service := NewService(tdb.Conn, RetentionSettings{Enabled: false, RetentionDays: 1}, tdb.Logger)
	ctx := context.Background()

	service.now = func() time.Time { return time.Now().AddDate(-1, 0, 0) }
	if _, err := service.Create(ctx, CreateInput{EventType: EventTypeQueued, TaskID: "x"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	service.now = time.Now

	if err := service.CleanupOldEntries(ctx); err != nil {
		t.Fatalf("CleanupOldEntries() error = %v", err)
	}
	resp, _ := service.List(ctx, ListOptions{})
	if resp.TotalCount != 1 {
		t.Errorf("TotalCount = %d, want 1", resp.TotalCount)
	}
}

func TestHandlers_ListAndClear(t *testing.T) {
	service, tdb := newTestService(t)
	defer tdb.Close()

	if _, err := service.Create(context.Background(), CreateInput{EventType: EventTypeQueued, TaskID: "a"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	e := echo.New()
	NewHandlers(service).RegisterRoutes(e.Group("/api/v1/history"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history?page=1&pageSize=10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/history", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want 204", rec.Code)
	}

	resp, _ := service.List(context.Background(), ListOptions{})
	if resp.TotalCount != 0 {
		t.Errorf("TotalCount after clear = %d, want 0", resp.TotalCount)
	}
}
