package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/skillcheck/internal/domain"
	"github.com/ashureev/skillcheck/internal/store"
)

type fakeDurable struct {
	mu      sync.Mutex
	records map[string][]byte
	fail    bool
	gets    int
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{records: make(map[string][]byte)}
}

func (f *fakeDurable) Get(_ context.Context, id string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.fail {
		return nil, errors.New("disk error")
	}
	data, ok := f.records[id]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeDurable) Put(_ context.Context, id string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("disk error")
	}
	f.records[id] = append([]byte(nil), data...)
	return nil
}

func (f *fakeDurable) List(_ context.Context, state string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id := range f.records {
		ids = append(ids, id)
	}
	_ = state
	return ids, nil
}

func (f *fakeDurable) Ping(_ context.Context) error { return nil }
func (f *fakeDurable) Close() error                 { return nil }

func (f *fakeDurable) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func testRecord(id string) *domain.SessionRecord {
	record := domain.NewSessionRecord(id, time.Now().UTC().Truncate(time.Second))
	record.State = domain.StateInProgress
	return record
}

func TestLoadAbsent(t *testing.T) {
	m := NewManager(newFakeDurable(), store.NewMemoryFastTier(), time.Minute, nil)
	record, err := m.Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record != nil {
		t.Fatalf("expected nil for absent session, got %+v", record)
	}
}

func TestSaveThenLoadReadThrough(t *testing.T) {
	durable := newFakeDurable()
	fast := store.NewMemoryFastTier()
	m := NewManager(durable, fast, time.Minute, nil)
	ctx := context.Background()

	record := testRecord("s1")
	if err := m.Save(ctx, record); err != nil {
		t.Fatalf("save: %v", err)
	}

	durableReads := durable.gets
	loaded, err := m.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ID != "s1" || loaded.State != domain.StateInProgress {
		t.Fatalf("unexpected record: %+v", loaded)
	}
	if durable.gets != durableReads {
		t.Fatal("expected load to be served from the fast tier")
	}
}

func TestSaveSurvivesFastTierLoss(t *testing.T) {
	durable := newFakeDurable()
	fast := store.NewMemoryFastTier()
	m := NewManager(durable, fast, time.Minute, nil)
	ctx := context.Background()

	record := testRecord("s1")
	record.AppendResponse(domain.ResponseEntry{QuestionID: "q1", Response: "answer", Timestamp: time.Now().UTC().Truncate(time.Second)})
	if err := m.Save(ctx, record); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Simulate crash of the volatile tier.
	fast.Delete("s1")

	loaded, err := m.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("load after fast tier loss: %v", err)
	}
	if loaded == nil || len(loaded.Responses) != 1 || loaded.Responses[0].QuestionID != "q1" {
		t.Fatalf("record not identical after fast tier loss: %+v", loaded)
	}
}

func TestSaveFailsWithPersistenceUnavailable(t *testing.T) {
	durable := newFakeDurable()
	fast := store.NewMemoryFastTier()
	m := NewManager(durable, fast, time.Minute, nil)

	durable.setFail(true)
	err := m.Save(context.Background(), testRecord("s1"))
	if !errors.Is(err, ErrPersistenceUnavailable) {
		t.Fatalf("expected ErrPersistenceUnavailable, got %v", err)
	}

	// The fast tier must not have been updated for a failed durable write.
	if _, ok := fast.Get("s1"); ok {
		t.Fatal("fast tier updated despite durable failure")
	}
}

func TestLoadWorksWithoutFastTier(t *testing.T) {
	durable := newFakeDurable()
	m := NewManager(durable, nil, time.Minute, nil)
	ctx := context.Background()

	if err := m.Save(ctx, testRecord("s1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := m.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil || loaded.ID != "s1" {
		t.Fatalf("unexpected record: %+v", loaded)
	}
}

func TestLoadEvictsCorruptFastTierEntry(t *testing.T) {
	durable := newFakeDurable()
	fast := store.NewMemoryFastTier()
	m := NewManager(durable, fast, time.Minute, nil)
	ctx := context.Background()

	if err := m.Save(ctx, testRecord("s1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	fast.Put("s1", []byte("{corrupt"), time.Minute)

	loaded, err := m.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil || loaded.ID != "s1" {
		t.Fatalf("expected durable fallback, got %+v", loaded)
	}
}

func TestWithLockSerializesMutations(t *testing.T) {
	m := NewManager(newFakeDurable(), nil, time.Minute, nil)
	ctx := context.Background()

	var inCritical, maxInCritical int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithLock(ctx, "s1", func(context.Context) error {
				mu.Lock()
				inCritical++
				if inCritical > maxInCritical {
					maxInCritical = inCritical
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inCritical--
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("WithLock: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxInCritical != 1 {
		t.Fatalf("critical section entered concurrently: %d", maxInCritical)
	}
}

func TestWithLockIndependentSessionsDoNotBlock(t *testing.T) {
	m := NewManager(newFakeDurable(), nil, time.Minute, nil)
	ctx := context.Background()

	blockS1 := make(chan struct{})
	s1Held := make(chan struct{})
	go func() {
		_ = m.WithLock(ctx, "s1", func(context.Context) error {
			close(s1Held)
			<-blockS1
			return nil
		})
	}()
	<-s1Held

	done := make(chan struct{})
	go func() {
		_ = m.WithLock(ctx, "s2", func(context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unrelated session blocked by held lock")
	}
	close(blockS1)
}

func TestWithLockRespectsCancellation(t *testing.T) {
	m := NewManager(newFakeDurable(), nil, time.Minute, nil)

	blockS1 := make(chan struct{})
	s1Held := make(chan struct{})
	go func() {
		_ = m.WithLock(context.Background(), "s1", func(context.Context) error {
			close(s1Held)
			<-blockS1
			return nil
		})
	}()
	<-s1Held

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := m.WithLock(ctx, "s1", func(context.Context) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	close(blockS1)

	// The lock must be free again after the holder returns.
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if err := m.WithLock(ctx2, "s1", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("lock left held after cancellation: %v", err)
	}
}
