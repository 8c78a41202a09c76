package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRegistry_Begin(t *testing.T) {
	r := New()

	runID := r.Begin("model.shop.m1", "shop", "model.shop.m1")
	require.NotEmpty(t, runID)
	assert.Equal(t, 1, r.Len(), "expected one live run")

	byRun, ok := r.Resolve(runID)
	require.True(t, ok, "expected to resolve by run id")
	byModel, ok := r.Resolve("model.shop.m1")
	require.True(t, ok, "expected to resolve by model id")

	assert.Same(t, byRun, byModel, "both keys should resolve to the same RunMeta")
	assert.Equal(t, runID, byRun.RunID)
	assert.Equal(t, "shop", byRun.Namespace)
	assert.Equal(t, "model.shop.m1", byRun.Name)
}

func TestRunRegistry_ResolveUnknown(t *testing.T) {
	r := New()
	r.Begin("model.shop.m1", "shop", "model.shop.m1")

	tests := []string{"", "model.shop.m2", "not-a-run-id", "00000000-0000-0000-0000-000000000000"}
	for _, key := range tests {
		t.Run(fmt.Sprintf("key=%q", key), func(t *testing.T) {
			meta, ok := r.Resolve(key)
			assert.False(t, ok)
			assert.Nil(t, meta)
		})
	}
}

func TestRunRegistry_Retire(t *testing.T) {
	r := New()
	runID := r.Begin("model.shop.m1", "shop", "model.shop.m1")

	r.Retire(runID)

	_, ok := r.Resolve(runID)
	assert.False(t, ok, "retired run id should not resolve")
	_, ok = r.Resolve("model.shop.m1")
	assert.False(t, ok, "retired model id should not resolve")
	assert.Equal(t, 0, r.Len())

	// Retiring twice or retiring by model id is a no-op
	r.Retire(runID)
	r.Retire("model.shop.m1")
}

func TestRunRegistry_RetireKeepsRebindModelKey(t *testing.T) {
	r := New()
	first := r.Begin("model.shop.m1", "shop", "model.shop.m1")
	second := r.Begin("model.shop.m1", "shop", "model.shop.m1")
	require.NotEqual(t, first, second)

	r.Retire(first)

	meta, ok := r.Resolve("model.shop.m1")
	require.True(t, ok, "model key should still point at the newer run")
	assert.Equal(t, second, meta.RunID)

	_, ok = r.Resolve(first)
	assert.False(t, ok)
}

func TestRunRegistry_ConcurrentBegin(t *testing.T) {
	r := New()

	const goroutines = 16
	const perGoroutine = 50

	var wg sync.WaitGroup
	ids := make([][]string, goroutines)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				model := fmt.Sprintf("model.shop.m%d_%d", g, i)
				ids[g] = append(ids[g], r.Begin(model, "shop", model))
			}
		}(g)
	}
	wg.Wait()

	seen := make(map[string]struct{}, goroutines*perGoroutine)
	for g := range ids {
		for i, id := range ids[g] {
			_, dup := seen[id]
			require.False(t, dup, "duplicate run id %s", id)
			seen[id] = struct{}{}

			meta, ok := r.Resolve(id)
			require.True(t, ok)
			assert.Equal(t, fmt.Sprintf("model.shop.m%d_%d", g, i), meta.Name)
		}
	}
	assert.Equal(t, goroutines*perGoroutine, r.Len())
}

func TestRunRegistry_TwoModelsIndependent(t *testing.T) {
	r := New()

	var runA, runB string
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); runA = r.Begin("m3", "shop", "m3") }()
	go func() { defer wg.Done(); runB = r.Begin("m4", "shop", "m4") }()
	wg.Wait()

	require.NotEqual(t, runA, runB)

	r.Retire(runA)

	metaB, ok := r.Resolve("m4")
	require.True(t, ok, "retiring m3 must not affect m4")
	assert.Equal(t, runB, metaB.RunID)
}

func TestRunRegistry_TakeOnce(t *testing.T) {
	r := New()
	runID := r.Begin("model.shop.m1", "shop", "model.shop.m1")

	var wg sync.WaitGroup
	var mu sync.Mutex
	taken := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := runID
			if i%2 == 0 {
				key = "model.shop.m1"
			}
			if _, ok := r.Take(key); ok {
				mu.Lock()
				taken++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, taken, "a run can only be taken once")
	_, ok := r.Resolve(runID)
	assert.False(t, ok)
}

func TestRunRegistry_TakeByModelID(t *testing.T) {
	r := New()
	runID := r.Begin("model.shop.m1", "shop", "model.shop.m1")

	meta, ok := r.Take("model.shop.m1")
	require.True(t, ok)
	assert.Equal(t, runID, meta.RunID)

	_, ok = r.Resolve(runID)
	assert.False(t, ok, "taking by model id retires the run id too")
}
