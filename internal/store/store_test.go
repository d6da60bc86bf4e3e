package store

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/sadopc/netwatch/internal/record"
)

var t0 = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time {
	return func() time.Time { return t0 }
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(WithClock(fixedClock()), WithLogger(zaptest.NewLogger(t)))
}

func TestScenarioPendingRecord(t *testing.T) {
	s := newTestStore(t)
	s.Add("1", record.Record{Method: "GET", URL: "/a"})

	if s.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", s.Len())
	}
	r, ok := s.Get("1")
	if !ok {
		t.Fatal("record not found")
	}
	if r.Method != "GET" || r.URL != "/a" {
		t.Errorf("unexpected record %s %s", r.Method, r.URL)
	}
	if r.Status != record.StatusPending {
		t.Errorf("expected pending, got %v", r.Status)
	}
	if r.Done {
		t.Error("record must not be done")
	}
	if r.ID != "1" {
		t.Errorf("expected id 1, got %q", r.ID)
	}
}

func TestScenarioHeadersThenDone(t *testing.T) {
	s := newTestStore(t)
	s.Add("1", record.Record{Method: "GET", URL: "/a"})

	s.Update("1", record.Patch{At: t0.Add(30 * time.Millisecond)}.WithStatus(404))
	r, _ := s.Get("1")
	if r.Status != 404 {
		t.Errorf("expected 404, got %v", r.Status)
	}
	if r.Done || r.HasErr {
		t.Error("record must not be done after headers")
	}

	s.Update("1", record.Patch{Done: true, At: t0.Add(250 * time.Millisecond)})
	r, _ = s.Get("1")
	if !r.Done {
		t.Error("expected done")
	}
	if r.Time != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", r.Time)
	}
	if !r.HasErr {
		t.Error("404 must be an error once done")
	}
}

func TestScenarioClearThenLateUpdate(t *testing.T) {
	s := newTestStore(t)
	s.Add("1", record.Record{URL: "/a"})
	s.Update("1", record.Patch{Done: true}.WithStatus(404))

	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d", s.Len())
	}
	if s.Update("1", record.Patch{Done: true}.WithStatus(404)) {
		t.Error("late update must be ignored")
	}
	if s.Len() != 0 {
		t.Error("late update must not recreate the record")
	}
}

func TestUpdateUnknownID(t *testing.T) {
	s := newTestStore(t)
	s.Add("1", record.Record{URL: "/a"})
	before, _ := s.Get("1")

	var changes int
	s.OnChange(func(Change) { changes++ })

	if s.Update("missing", record.Patch{Done: true}.WithStatus(500)) {
		t.Error("update for unknown id reported success")
	}
	after, _ := s.Get("1")
	if after.Done != before.Done || after.Status != before.Status {
		t.Error("unknown id update mutated another record")
	}
	if changes != 0 {
		t.Errorf("expected no notification, got %d", changes)
	}
}

func TestSnapshotEmpty(t *testing.T) {
	s := newTestStore(t)
	if s.Snapshot() != nil {
		t.Error("expected nil snapshot for empty store")
	}
	s.Add("1", record.Record{URL: "/a"})
	snap := s.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 record, got %d", len(snap))
	}
	s.Clear()
	if s.Snapshot() != nil {
		t.Error("expected nil snapshot after clear")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newTestStore(t)
	s.Add("1", record.Record{URL: "/a", ReqHeaders: map[string]string{"X": "1"}})

	snap := s.Snapshot()
	r := snap["1"]
	r.ReqHeaders["X"] = "2"

	got, _ := s.Get("1")
	if got.ReqHeaders["X"] != "1" {
		t.Error("snapshot shares header maps with the store")
	}
}

func TestListKeepsInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"c", "a", "b"} {
		s.Add(id, record.Record{URL: "/" + id})
	}
	s.Add("a", record.Record{URL: "/a2"})

	list := s.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 records, got %d", len(list))
	}
	want := []string{"c", "a", "b"}
	for i, r := range list {
		if r.ID != want[i] {
			t.Errorf("list[%d] = %s, want %s", i, r.ID, want[i])
		}
	}
	if list[1].URL != "/a2" {
		t.Errorf("re-added id must replace the record, got %s", list[1].URL)
	}
}

func TestOnChange(t *testing.T) {
	s := newTestStore(t)

	var kinds []ChangeKind
	unregister := s.OnChange(func(c Change) { kinds = append(kinds, c.Kind) })

	s.Add("1", record.Record{URL: "/a"})
	s.Update("1", record.Patch{}.WithStatus(200))
	s.Clear()

	want := []ChangeKind{ChangeAdd, ChangeUpdate, ChangeClear}
	if len(kinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("change %d = %s, want %s", i, kinds[i], want[i])
		}
	}

	unregister()
	s.Add("2", record.Record{URL: "/b"})
	if len(kinds) != len(want) {
		t.Error("handler called after unregister")
	}
}

func TestOnChangeHandlerCanReadStore(t *testing.T) {
	s := newTestStore(t)
	var seen int
	s.OnChange(func(Change) { seen = s.Len() })
	s.Add("1", record.Record{URL: "/a"})
	if seen != 1 {
		t.Errorf("handler saw %d records, want 1", seen)
	}
}

func TestSubscribe(t *testing.T) {
	s := newTestStore(t)
	ch, unsubscribe := s.Subscribe(4)

	s.Add("1", record.Record{URL: "/a"})
	s.Update("1", record.Patch{Done: true}.WithStatus(200))

	c := <-ch
	if c.Kind != ChangeAdd || c.ID != "1" {
		t.Errorf("unexpected first change %+v", c)
	}
	c = <-ch
	if c.Kind != ChangeUpdate || !c.Record.Done {
		t.Errorf("unexpected second change %+v", c)
	}

	unsubscribe()
	unsubscribe()
	if _, ok := <-ch; ok {
		t.Error("expected closed channel after unsubscribe")
	}
	s.Add("2", record.Record{URL: "/b"})
}

func TestSubscribeDropsWhenFull(t *testing.T) {
	s := newTestStore(t)
	ch, unsubscribe := s.Subscribe(1)
	defer unsubscribe()

	s.Add("1", record.Record{URL: "/a"})
	s.Add("2", record.Record{URL: "/b"})

	if len(ch) != 1 {
		t.Fatalf("expected 1 buffered change, got %d", len(ch))
	}
	if c := <-ch; c.ID != "1" {
		t.Errorf("expected first change kept, got %s", c.ID)
	}
	if s.Len() != 2 {
		t.Error("slow subscriber must not block the store")
	}
}

func TestListenerInterface(t *testing.T) {
	s := newTestStore(t)
	var l record.Listener = s
	l.OnSend("1", record.Record{URL: "/a"})
	l.OnUpdate("1", record.Patch{Done: true}.WithStatus(201))

	r, ok := s.Get("1")
	if !ok || !r.Done || r.Status != 201 || r.HasErr {
		t.Errorf("unexpected record %+v", r)
	}
}

func TestConcurrentUpdates(t *testing.T) {
	s := newTestStore(t)
	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		s.Add(id, record.Record{URL: "/" + id})
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Update(id, record.Patch{ResHeaders: map[string]string{"X-N": id}})
			}
			s.Update(id, record.Patch{Done: true}.WithStatus(200))
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		r, _ := s.Get(id)
		if !r.Done || r.ResHeaders["X-N"] != id {
			t.Errorf("record %s not finalized: %+v", id, r)
		}
	}
}
