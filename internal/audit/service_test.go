package audit

import (
	"context"
	"testing"
	"time"
)

type stubTimelineRepo struct {
	rows     []TimelineRow
	lastCall Query
}

func (s *stubTimelineRepo) Timeline(ctx context.Context, q Query) ([]TimelineRow, error) {
	s.lastCall = q
	if q.Limit > 0 && q.Limit < len(s.rows) {
		return s.rows[:q.Limit], nil
	}
	return s.rows, nil
}

func mockRow(ts, action, entityID string) TimelineRow {
	at, _ := time.Parse(time.RFC3339, ts)
	return TimelineRow{At: at, ActorID: 7, Action: action, Entity: "condition", EntityID: entityID}
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{rows: []TimelineRow{
		mockRow("2024-03-10T10:00:00Z", "condition.update", "a"),
		mockRow("2024-03-09T09:00:00Z", "condition.update", "a"),
		mockRow("2024-03-08T08:00:00Z", "condition.create", "a"),
	}}
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{
		From:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Entity:   " condition ",
		Page:     1,
		PageSize: 2,
	})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	if !result.Paging.HasNext || result.Paging.NextPage != 2 {
		t.Fatalf("expected next page 2, got %+v", result.Paging)
	}
	if repo.lastCall.Limit != 3 || repo.lastCall.Offset != 0 {
		t.Fatalf("unexpected window %+v", repo.lastCall)
	}
	if repo.lastCall.Entity != "condition" {
		t.Fatalf("expected trimmed entity filter, got %q", repo.lastCall.Entity)
	}
}

func TestServiceTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	result, err := NewService(repo).Timeline(context.Background(), TimelineFilters{Page: 3, PageSize: 500})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastCall.Limit != maxPageSize+1 || repo.lastCall.Offset != 2*maxPageSize {
		t.Fatalf("unexpected window %+v", repo.lastCall)
	}
	if result.Paging.PrevPage != 2 || result.Rows == nil {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestServiceExportReturnsAllRows(t *testing.T) {
	repo := &stubTimelineRepo{rows: []TimelineRow{
		mockRow("2024-03-10T10:00:00Z", "condition.update", "a"),
		mockRow("2024-03-09T09:00:00Z", "condition.delete", "b"),
	}}
	rows, err := NewService(repo).Export(context.Background(), TimelineFilters{Action: "condition.update", PageSize: 1})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if repo.lastCall.Limit != 0 {
		t.Fatalf("expected unbounded export, got limit %d", repo.lastCall.Limit)
	}
}

func TestServiceWithoutRepository(t *testing.T) {
	if _, err := NewService(nil).Timeline(context.Background(), TimelineFilters{}); err == nil {
		t.Fatalf("expected error without repository")
	}
}
