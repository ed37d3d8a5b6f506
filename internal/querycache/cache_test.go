package querycache_test

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"board_query_cache/internal/durable"
	"board_query_cache/internal/querycache"
	"board_query_cache/internal/testutil"
)

var start = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

type harness struct {
	cache *querycache.Cache
	store *testutil.FaultStore
	clock *testutil.Clock
}

func newHarness(t *testing.T, cfg querycache.Config) *harness {
	t.Helper()
	store := testutil.NewFaultStore()
	clock := testutil.NewClock(start)
	return &harness{
		cache: newCache(cfg, store, clock),
		store: store,
		clock: clock,
	}
}

func newCache(cfg querycache.Config, store *testutil.FaultStore, clock *testutil.Clock) *querycache.Cache {
	return querycache.New(cfg, store, querycache.Options{
		Now:    clock.Now,
		Logger: log.New(io.Discard, "", 0),
	})
}

func items(raw ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(raw))
	for _, item := range raw {
		out = append(out, json.RawMessage(item))
	}
	return out
}

func manifest(t *testing.T, store *testutil.FaultStore) []string {
	t.Helper()
	raw, ok := store.Raw(querycache.DefaultManifestKey)
	if !ok {
		return nil
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	return keys
}

func TestEndToEndSetThenGet(t *testing.T) {
	h := newHarness(t, querycache.Config{})
	pagination := &querycache.Pagination{Total: 10, Pages: 1, Page: 1, Limit: 10}

	outcome := h.cache.Set(querycache.Params{"page": 1, "limit": 10}, items(`{"id":"1"}`), pagination)
	if outcome != querycache.SetStored {
		t.Fatalf("expected stored outcome, got %s", outcome)
	}

	got, ok := h.cache.Get(querycache.Params{"limit": 10, "page": 1})
	if !ok {
		t.Fatalf("expected hit")
	}
	want := querycache.Entry{
		Data:       items(`{"id":"1"}`),
		Pagination: &querycache.Pagination{Total: 10, Pages: 1, Page: 1, Limit: 10},
		Timestamp:  start,
		Key:        "boards:limit=10&page=1",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("entry mismatch (-want +got):\n%s", diff)
	}
}

func TestGetMissDoesNotReadDurableStore(t *testing.T) {
	h := newHarness(t, querycache.Config{})
	params := querycache.Params{"page": 1}
	h.cache.Set(params, items(`{"id":"1"}`), nil)

	other := newCache(querycache.Config{}, h.store, h.clock)
	if _, ok := other.Get(params); ok {
		t.Fatalf("expected miss before Load")
	}
}

func TestTTLBoundary(t *testing.T) {
	h := newHarness(t, querycache.Config{MaxAge: 5 * time.Minute})
	params := querycache.Params{"page": 1}
	h.cache.Set(params, items(`{"id":"1"}`), nil)

	h.clock.Advance(4 * time.Minute)
	if _, ok := h.cache.Get(params); !ok {
		t.Fatalf("expected hit at 4m")
	}

	h.clock.Advance(2 * time.Minute)
	if _, ok := h.cache.Get(params); ok {
		t.Fatalf("expected miss at 6m")
	}
	key := h.cache.Key(params)
	if _, ok := h.store.Raw(key); ok {
		t.Fatalf("expected durable record purged")
	}
	if keys := manifest(t, h.store); len(keys) != 0 {
		t.Fatalf("expected manifest pruned, got %v", keys)
	}
	if size := h.cache.Stats().Size; size != 0 {
		t.Fatalf("expected size 0, got %d", size)
	}
}

func TestReadDoesNotExtendLifetime(t *testing.T) {
	h := newHarness(t, querycache.Config{MaxAge: time.Minute})
	params := querycache.Params{"page": 1}
	h.cache.Set(params, items(`{"id":"1"}`), nil)

	for i := 0; i < 3; i++ {
		h.clock.Advance(20 * time.Second)
		if _, ok := h.cache.Get(params); !ok {
			t.Fatalf("expected hit after %d reads", i+1)
		}
	}
	h.clock.Advance(time.Second)
	if _, ok := h.cache.Get(params); ok {
		t.Fatalf("expected expiry measured from creation")
	}
}

func TestSetOverwritesWithoutMerging(t *testing.T) {
	h := newHarness(t, querycache.Config{})
	params := querycache.Params{"page": 1}
	h.cache.Set(params, items(`{"id":"1"}`, `{"id":"2"}`), &querycache.Pagination{Total: 2, Pages: 1, Page: 1, Limit: 10})

	h.clock.Advance(time.Second)
	h.cache.Set(params, items(`{"id":"3"}`), nil)

	got, ok := h.cache.Get(params)
	if !ok {
		t.Fatalf("expected hit")
	}
	if diff := cmp.Diff(items(`{"id":"3"}`), got.Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
	if got.Pagination != nil {
		t.Fatalf("expected pagination cleared, got %+v", got.Pagination)
	}
	if !got.Timestamp.Equal(start.Add(time.Second)) {
		t.Fatalf("expected fresh timestamp, got %v", got.Timestamp)
	}
	if keys := manifest(t, h.store); len(keys) != 1 {
		t.Fatalf("expected one manifest key, got %v", keys)
	}
}

func TestReturnedEntryIsACopy(t *testing.T) {
	h := newHarness(t, querycache.Config{})
	params := querycache.Params{"page": 1}
	data := items(`{"id":"1"}`)
	h.cache.Set(params, data, &querycache.Pagination{Total: 1})
	data[0][2] = 'X'

	got, _ := h.cache.Get(params)
	got.Pagination.Total = 99
	got.Data[0] = json.RawMessage(`{}`)

	again, _ := h.cache.Get(params)
	if string(again.Data[0]) != `{"id":"1"}` || again.Pagination.Total != 1 {
		t.Fatalf("cached entry was mutated: %s %+v", again.Data[0], again.Pagination)
	}
}

func TestSizeBoundEvictsOldestFirst(t *testing.T) {
	h := newHarness(t, querycache.Config{MaxSize: 3})
	for page := 1; page <= 4; page++ {
		h.cache.Set(querycache.Params{"page": page}, items(`{}`), nil)
	}

	keys := manifest(t, h.store)
	want := []string{"boards:page=2", "boards:page=3", "boards:page=4"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Fatalf("manifest mismatch (-want +got):\n%s", diff)
	}
	if _, ok := h.cache.Get(querycache.Params{"page": 1}); ok {
		t.Fatalf("expected first key evicted")
	}
	if _, ok := h.store.Raw("boards:page=1"); ok {
		t.Fatalf("expected first durable record removed")
	}
	if size := h.cache.Stats().Size; size != 3 {
		t.Fatalf("expected size 3, got %d", size)
	}
}

func TestDefaultSizeBound(t *testing.T) {
	h := newHarness(t, querycache.Config{})
	for page := 0; page <= querycache.DefaultMaxSize; page++ {
		h.cache.Set(querycache.Params{"page": page}, items(`{}`), nil)
	}
	if keys := manifest(t, h.store); len(keys) != querycache.DefaultMaxSize {
		t.Fatalf("expected %d manifest keys, got %d", querycache.DefaultMaxSize, len(keys))
	}
	if _, ok := h.cache.Get(querycache.Params{"page": 0}); ok {
		t.Fatalf("expected first key evicted")
	}
}

func TestSizeBoundHoldsWithoutDurableMirror(t *testing.T) {
	failing := testutil.NewFaultStore()
	failing.FailSets(func(string, string) error { return errors.New("connection refused") })
	unreadable := testutil.NewFaultStore()
	unreadable.FailGets(func(key string) error {
		if key == querycache.DefaultManifestKey {
			return errors.New("read timeout")
		}
		return nil
	})

	cases := []struct {
		name  string
		store durable.Store
	}{
		{name: "nil store", store: nil},
		{name: "failing writes", store: failing},
		{name: "unreadable manifest", store: unreadable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cache := querycache.New(querycache.Config{MaxSize: 3}, tc.store, querycache.Options{
				Logger: log.New(io.Discard, "", 0),
			})
			for i := 1; i <= 10; i++ {
				if outcome := cache.Set(querycache.Params{"page": i}, items(`{}`), nil); outcome != querycache.SetMemoryOnly {
					t.Fatalf("set %d: expected memory only outcome, got %s", i, outcome)
				}
			}
			want := querycache.Stats{Size: 3, Keys: []string{"boards:page=10", "boards:page=8", "boards:page=9"}}
			if diff := cmp.Diff(want, cache.Stats()); diff != "" {
				t.Fatalf("stats mismatch (-want +got):\n%s", diff)
			}
			if _, ok := cache.Get(querycache.Params{"page": 1}); ok {
				t.Fatalf("expected first inserted key evicted")
			}
		})
	}
}

func TestSizeBoundKeepsPositionOnOverwrite(t *testing.T) {
	cache := querycache.New(querycache.Config{MaxSize: 2}, nil, querycache.Options{Logger: log.New(io.Discard, "", 0)})
	first := querycache.Params{"page": 1}
	cache.Set(first, items(`{}`), nil)
	cache.Set(querycache.Params{"page": 2}, items(`{}`), nil)
	cache.Set(first, items(`{"v":2}`), nil)
	cache.Set(querycache.Params{"page": 3}, items(`{}`), nil)

	if _, ok := cache.Get(first); ok {
		t.Fatalf("expected overwritten key to keep its original position and be evicted")
	}
	if _, ok := cache.Get(querycache.Params{"page": 2}); !ok {
		t.Fatalf("expected page 2 retained")
	}
}

func TestRemoveMatchesExactKey(t *testing.T) {
	h := newHarness(t, querycache.Config{})
	one := querycache.Params{"page": 1}
	ten := querycache.Params{"page": 10}
	h.cache.Set(one, items(`{}`), nil)
	h.cache.Set(ten, items(`{}`), nil)

	if !h.cache.Remove(one) {
		t.Fatalf("expected remove to report a dropped entry")
	}
	if _, ok := h.cache.Get(ten); !ok {
		t.Fatalf("expected page=10 untouched by exact removal")
	}
	if _, ok := h.store.Raw(h.cache.Key(one)); ok {
		t.Fatalf("expected durable record removed")
	}
	if diff := cmp.Diff([]string{h.cache.Key(ten)}, manifest(t, h.store)); diff != "" {
		t.Fatalf("manifest mismatch (-want +got):\n%s", diff)
	}
	if h.cache.Remove(one) {
		t.Fatalf("expected second remove to report nothing dropped")
	}
}

func TestInvalidateAndClearReportRemoved(t *testing.T) {
	h := newHarness(t, querycache.Config{})
	for i := 1; i <= 3; i++ {
		h.cache.Set(querycache.Params{"page": i}, items(`{}`), nil)
	}
	h.cache.Set(querycache.Params{"search": "x"}, items(`{}`), nil)

	if removed := h.cache.Invalidate("page="); removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	if removed := h.cache.Clear(); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
}

func TestResetKeyKeepsManifestPosition(t *testing.T) {
	h := newHarness(t, querycache.Config{MaxSize: 2})
	h.cache.Set(querycache.Params{"page": 1}, items(`{}`), nil)
	h.cache.Set(querycache.Params{"page": 2}, items(`{}`), nil)
	h.cache.Set(querycache.Params{"page": 1}, items(`{"v":2}`), nil)
	h.cache.Set(querycache.Params{"page": 3}, items(`{}`), nil)

	if _, ok := h.cache.Get(querycache.Params{"page": 1}); ok {
		t.Fatalf("expected page 1 evicted by insertion order")
	}
	if _, ok := h.cache.Get(querycache.Params{"page": 2}); !ok {
		t.Fatalf("expected page 2 to remain")
	}
}

func TestInvalidatePattern(t *testing.T) {
	h := newHarness(t, querycache.Config{})
	one := querycache.Params{"scope": "board:1"}
	two := querycache.Params{"scope": "board:2"}
	h.cache.Set(one, items(`{"id":"1"}`), nil)
	h.cache.Set(two, items(`{"id":"2"}`), nil)

	h.cache.Invalidate("board:1")

	if _, ok := h.cache.Get(one); ok {
		t.Fatalf("expected board:1 invalidated")
	}
	if _, ok := h.cache.Get(two); !ok {
		t.Fatalf("expected board:2 to remain")
	}
	if _, ok := h.store.Raw(h.cache.Key(one)); ok {
		t.Fatalf("expected durable record for board:1 removed")
	}
	if diff := cmp.Diff([]string{h.cache.Key(two)}, manifest(t, h.store)); diff != "" {
		t.Fatalf("manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestInvalidateWithoutPatternClears(t *testing.T) {
	h := newHarness(t, querycache.Config{})
	h.cache.Set(querycache.Params{"page": 1}, items(`{}`), nil)
	h.cache.Set(querycache.Params{"page": 2}, items(`{}`), nil)
	h.store.Put("unrelated", "keep")

	h.cache.Invalidate("")

	if size := h.cache.Stats().Size; size != 0 {
		t.Fatalf("expected size 0, got %d", size)
	}
	if _, ok := h.store.Raw(querycache.DefaultManifestKey); ok {
		t.Fatalf("expected manifest removed")
	}
	if diff := cmp.Diff([]string{"unrelated"}, h.store.Keys()); diff != "" {
		t.Fatalf("store keys mismatch (-want +got):\n%s", diff)
	}
}

func TestQuotaFailureResetsCache(t *testing.T) {
	h := newHarness(t, querycache.Config{})
	first := querycache.Params{"page": 1}
	h.cache.Set(first, items(`{}`), nil)
	h.cache.Set(querycache.Params{"page": 2}, items(`{}`), nil)

	h.store.QuotaAfter(0)
	outcome := h.cache.Set(querycache.Params{"page": 3}, items(`{}`), nil)
	if outcome != querycache.SetReset {
		t.Fatalf("expected reset outcome, got %s", outcome)
	}
	if size := h.cache.Stats().Size; size != 0 {
		t.Fatalf("expected size 0, got %d", size)
	}
	if _, ok := h.cache.Get(first); ok {
		t.Fatalf("expected previously set key absent")
	}
	if n := h.store.Len(); n != 0 {
		t.Fatalf("expected durable store emptied, got %v", h.store.Keys())
	}

	h.store.FailSets(nil)
	if outcome := h.cache.Set(first, items(`{}`), nil); outcome != querycache.SetStored {
		t.Fatalf("expected cache usable after reset, got %s", outcome)
	}
}

func TestQuotaFailureOnManifestWriteResetsCache(t *testing.T) {
	h := newHarness(t, querycache.Config{})
	h.cache.Set(querycache.Params{"page": 1}, items(`{}`), nil)

	h.store.FailSets(func(key string, _ string) error {
		if key == querycache.DefaultManifestKey {
			return errors.New("manifest write refused")
		}
		return nil
	})
	if outcome := h.cache.Set(querycache.Params{"page": 2}, items(`{}`), nil); outcome != querycache.SetMemoryOnly {
		t.Fatalf("expected memory only outcome for non-quota failure, got %s", outcome)
	}

	h.store.QuotaAfter(1)
	if outcome := h.cache.Set(querycache.Params{"page": 3}, items(`{}`), nil); outcome != querycache.SetReset {
		t.Fatalf("expected reset outcome, got %s", outcome)
	}
	if size := h.cache.Stats().Size; size != 0 {
		t.Fatalf("expected size 0, got %d", size)
	}
}

func TestOtherWriteFailureKeepsMemory(t *testing.T) {
	h := newHarness(t, querycache.Config{})
	h.store.FailSets(func(string, string) error { return errors.New("disk unplugged") })

	params := querycache.Params{"page": 1}
	if outcome := h.cache.Set(params, items(`{"id":"1"}`), nil); outcome != querycache.SetMemoryOnly {
		t.Fatalf("expected memory only outcome, got %s", outcome)
	}
	if _, ok := h.cache.Get(params); !ok {
		t.Fatalf("expected in-memory hit despite durable failure")
	}
	if h.store.Len() != 0 {
		t.Fatalf("expected nothing durable, got %v", h.store.Keys())
	}
}

func TestCorruptManifestDuringSetResets(t *testing.T) {
	h := newHarness(t, querycache.Config{})
	h.cache.Set(querycache.Params{"page": 1}, items(`{}`), nil)
	h.store.Put(querycache.DefaultManifestKey, "{oops")

	if outcome := h.cache.Set(querycache.Params{"page": 2}, items(`{}`), nil); outcome != querycache.SetReset {
		t.Fatalf("expected reset outcome, got %s", outcome)
	}
	if size := h.cache.Stats().Size; size != 0 {
		t.Fatalf("expected size 0, got %d", size)
	}
	if _, ok := h.store.Raw(querycache.DefaultManifestKey); ok {
		t.Fatalf("expected corrupt manifest removed")
	}
}

func TestNilStoreRunsInMemory(t *testing.T) {
	cache := querycache.New(querycache.Config{}, nil, querycache.Options{Logger: log.New(io.Discard, "", 0)})
	params := querycache.Params{"page": 1}
	if outcome := cache.Set(params, items(`{}`), nil); outcome != querycache.SetMemoryOnly {
		t.Fatalf("expected memory only outcome, got %s", outcome)
	}
	if _, ok := cache.Get(params); !ok {
		t.Fatalf("expected hit")
	}
	if report := cache.Load(); report != (querycache.LoadReport{}) {
		t.Fatalf("expected empty report, got %+v", report)
	}
	cache.Invalidate("page")
	if cache.Stats().Size != 0 {
		t.Fatalf("expected empty cache")
	}
}

func TestStatsListsKeysSorted(t *testing.T) {
	h := newHarness(t, querycache.Config{})
	h.cache.Set(querycache.Params{"page": 2}, items(`{}`), nil)
	h.cache.Set(querycache.Params{"page": 1}, items(`{}`), nil)

	want := querycache.Stats{Size: 2, Keys: []string{"boards:page=1", "boards:page=2"}}
	if diff := cmp.Diff(want, h.cache.Stats()); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestConcurrentAccess(t *testing.T) {
	h := newHarness(t, querycache.Config{MaxSize: 8})
	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				params := querycache.Params{"page": i % 12, "worker": worker % 2}
				h.cache.Set(params, items(`{}`), nil)
				h.cache.Get(params)
				if i%17 == 0 {
					h.cache.Invalidate("worker=1")
				}
			}
		}(worker)
	}
	wg.Wait()

	if keys := manifest(t, h.store); len(keys) > 8 {
		t.Fatalf("manifest exceeds bound: %d keys", len(keys))
	}
	if size := h.cache.Stats().Size; size > 8 {
		t.Fatalf("index exceeds bound: %d entries", size)
	}
}
