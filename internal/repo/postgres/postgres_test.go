package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitewatch/internal/domain"
)

func TestPostgresStore_Upsert_List_Downtime(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}

	ctx := context.Background()
	store, err := New(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("New store: %v", err)
	}
	defer store.Close()

	// unique URL per run so reruns against the same database don't collide
	uniqueURL := fmt.Sprintf("https://example.com/test-%d", time.Now().UTC().UnixNano())

	if _, err := store.Upsert(ctx, uniqueURL, "111"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := store.Upsert(ctx, uniqueURL, "222")
	if err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	if got.ChatID != "222" {
		t.Fatalf("want chat id 222, got %q", got.ChatID)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	n := 0
	for _, x := range list {
		if x.URL == uniqueURL {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("want exactly one row for %s, got %d", uniqueURL, n)
	}

	if err := store.Ensure(ctx, domain.Target{URL: uniqueURL, Name: "renamed"}); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	tgt, err := store.Get(ctx, uniqueURL)
	if err != nil || tgt == nil {
		t.Fatalf("Get: %+v %v", tgt, err)
	}
	if tgt.ChatID != "222" || tgt.Name != "renamed" {
		t.Fatalf("unexpected target after Ensure: %+v", tgt)
	}
	if err := store.Ensure(ctx, domain.Target{URL: uniqueURL, ChatID: "999"}); err != nil {
		t.Fatalf("Ensure with chat id: %v", err)
	}
	if tgt, _ := store.Get(ctx, uniqueURL); tgt == nil || tgt.ChatID != "222" {
		t.Fatalf("file chat id replaced admin mapping: %+v", tgt)
	}

	at := time.Now().UTC().Truncate(time.Microsecond)
	if err := store.Append(ctx, domain.DowntimeEntry{URL: uniqueURL, Error: "timeout", At: at}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	recent, err := store.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 || recent[0].URL != uniqueURL || recent[0].Error != "timeout" {
		t.Fatalf("unexpected recent: %+v", recent)
	}
}

func TestPostgresStore_StateAndHistory(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}

	ctx := context.Background()
	store, err := New(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("New store: %v", err)
	}
	defer store.Close()

	url := fmt.Sprintf("https://example.com/state-%d", time.Now().UTC().UnixNano())
	down := time.Now().UTC().Truncate(time.Microsecond)

	if st, err := store.GetState(ctx, url); err != nil || st != nil {
		t.Fatalf("want nil,nil before first save, got %+v %v", st, err)
	}
	if err := store.SetState(ctx, domain.TargetState{URL: url, Status: domain.StatusDown, LastDowntime: &down, Error: "timeout", LastError: "timeout", LastChecked: down}); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	if err := store.SetState(ctx, domain.TargetState{URL: url, Status: domain.StatusUp, LastError: "timeout", LastChecked: down.Add(time.Minute)}); err != nil {
		t.Fatalf("SetState again: %v", err)
	}
	st, err := store.GetState(ctx, url)
	if err != nil || st == nil {
		t.Fatalf("GetState: %+v %v", st, err)
	}
	if st.Status != domain.StatusUp || st.LastDowntime == nil || !st.LastDowntime.Equal(down) || st.Error != "" {
		t.Fatalf("unexpected state: %+v", st)
	}

	for i, s := range []domain.Status{domain.StatusDown, domain.StatusUp} {
		if err := store.AppendStatus(ctx, domain.StatusEvent{URL: url, Status: s, At: down.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("AppendStatus: %v", err)
		}
	}
	prev, events, err := store.StatusSince(ctx, url, down.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("StatusSince: %v", err)
	}
	if prev == nil || prev.Status != domain.StatusDown || len(events) != 1 || events[0].Status != domain.StatusUp {
		t.Fatalf("unexpected history: prev=%+v events=%+v", prev, events)
	}
}
