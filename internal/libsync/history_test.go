package libsync

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/nerrad567/boardsync-core/internal/infrastructure/database"
	_ "github.com/nerrad567/boardsync-core/migrations"
)

func openHistory(t *testing.T) *History {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "history.db"), BusyTimeout: 1})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewHistory(db.DB)
}

func TestHistory_RecordAndList(t *testing.T) {
	h := openHistory(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	runs := []Run{
		{ID: "r1", BoardKey: "ABC", Mode: ModeProgram, Requested: []string{"neopixel"}, Installed: []string{"adafruit_pixelbuf", "neopixel"}, StartedAt: base, FinishedAt: base.Add(time.Second)},
		{ID: "r2", BoardKey: "XYZ", Mode: ModeInstalled, StartedAt: base.Add(time.Minute), FinishedAt: base.Add(time.Minute)},
		{ID: "r3", BoardKey: "ABC", Mode: ModeExplicit, Requested: []string{"adafruit_ticks"}, Failed: map[string]string{"adafruit_ticks": "libsync: drive not writable"}, Error: "", StartedAt: base.Add(500 * time.Millisecond), FinishedAt: base.Add(2 * time.Second)},
	}
	for _, r := range runs {
		if err := h.Record(ctx, r); err != nil {
			t.Fatalf("Record(%s) error = %v", r.ID, err)
		}
	}

	got, err := h.List(ctx, "ABC", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "r3" || got[1].ID != "r1" {
		t.Fatalf("List(ABC) = %+v, want r3 then r1", got)
	}
	if !reflect.DeepEqual(got[1].Installed, []string{"adafruit_pixelbuf", "neopixel"}) {
		t.Errorf("Installed = %v", got[1].Installed)
	}
	if got[0].Failed["adafruit_ticks"] == "" {
		t.Errorf("Failed = %v", got[0].Failed)
	}
	if !got[1].StartedAt.Equal(base) || got[1].Mode != ModeProgram {
		t.Errorf("round trip = %+v", got[1])
	}

	all, err := h.List(ctx, "", 2)
	if err != nil {
		t.Fatalf("List(all) error = %v", err)
	}
	if len(all) != 2 || all[0].ID != "r2" {
		t.Errorf("List(all, 2) = %+v", all)
	}
}

func TestHistory_RecordValidation(t *testing.T) {
	h := openHistory(t)
	if err := h.Record(context.Background(), Run{BoardKey: "ABC"}); err == nil {
		t.Error("Record() without id should fail")
	}
}

func TestSync_RecordsHistory(t *testing.T) {
	hist := openHistory(t)
	hs := newHarness(t)
	hs.orch.SetHistory(hist)
	hs.board.PutFile("/code.py", []byte("import neopixel\n"))

	rep, err := hs.orch.Sync(context.Background(), hs.target, Request{Install: true})
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	runs, err := hist.List(context.Background(), "ABC", 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 1 || runs[0].ID != rep.ID {
		t.Fatalf("runs = %+v, want report %s", runs, rep.ID)
	}
	if !reflect.DeepEqual(runs[0].Requested, []string{"neopixel"}) || len(runs[0].Installed) != 2 {
		t.Errorf("run = %+v", runs[0])
	}
}
