package upload

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pct(v float64) *float64 { return &v }

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestRegistryNewestFirst(t *testing.T) {
	r := NewRegistry()
	r.Insert(Item{ID: "a1"}, Item{ID: "a2"})
	r.Insert(Item{ID: "b1"})

	assert.Equal(t, []string{"b1", "a1", "a2"}, ids(r.Snapshot()))
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	r.Insert(Item{ID: "x", Status: StatusIdle})

	_, changed := r.Update("x", Patch{Progress: pct(10)})
	assert.False(t, changed, "progress is ignored before uploading")

	it, changed := r.Update("x", Patch{Status: StatusUploading})
	require.True(t, changed)
	assert.Equal(t, StatusUploading, it.Status)
	assert.Zero(t, it.Progress)

	it, _ = r.Update("x", Patch{Progress: pct(40)})
	assert.Equal(t, float64(40), it.Progress)

	it, changed = r.Update("x", Patch{Progress: pct(30)})
	assert.False(t, changed, "progress never moves back")
	assert.Equal(t, float64(40), it.Progress)

	it, _ = r.Update("x", Patch{Progress: pct(140)})
	assert.Equal(t, float64(100), it.Progress)

	it, changed = r.Update("x", Patch{Status: StatusCompleted, Result: &Result{Key: "media/k.png", URL: "https://pub/media/k.png"}})
	require.True(t, changed)
	assert.Equal(t, StatusCompleted, it.Status)
	assert.Equal(t, float64(100), it.Progress)
	require.NotNil(t, it.Result)
	assert.Empty(t, it.Error)

	_, changed = r.Update("x", Patch{Status: StatusError, Error: "late"})
	assert.False(t, changed, "terminal items are immutable")
	it, _ = r.Get("x")
	assert.Equal(t, StatusCompleted, it.Status)
}

func TestRegistryCompletedNeedsResult(t *testing.T) {
	r := NewRegistry()
	r.Insert(Item{ID: "x", Status: StatusIdle})
	r.Update("x", Patch{Status: StatusUploading})

	_, changed := r.Update("x", Patch{Status: StatusCompleted})
	assert.False(t, changed)
}

func TestRegistryError(t *testing.T) {
	r := NewRegistry()
	r.Insert(Item{ID: "x", Status: StatusIdle}, Item{ID: "y", Status: StatusIdle})

	it, changed := r.Update("x", Patch{Status: StatusError, Error: "boom"})
	require.True(t, changed)
	assert.Equal(t, "boom", it.Error)
	assert.Nil(t, it.Result)

	r.Update("y", Patch{Status: StatusUploading})
	it, _ = r.Update("y", Patch{Status: StatusError})
	assert.Equal(t, "upload failed", it.Error)
}

func TestRegistryInvalidTransition(t *testing.T) {
	r := NewRegistry()
	r.Insert(Item{ID: "x", Status: StatusIdle})

	_, changed := r.Update("x", Patch{Status: StatusCompleted, Result: &Result{Key: "k"}})
	assert.False(t, changed, "idle cannot jump to completed")

	_, changed = r.Update("missing", Patch{Status: StatusUploading})
	assert.False(t, changed)
}

func TestRegistryCopies(t *testing.T) {
	r := NewRegistry()
	r.Insert(Item{ID: "x", Status: StatusIdle})
	r.Update("x", Patch{Status: StatusUploading})
	it, _ := r.Update("x", Patch{Status: StatusCompleted, Result: &Result{Key: "k"}})

	it.Result.Key = "changed"
	got, _ := r.Get("x")
	assert.Equal(t, "k", got.Result.Key)
}

func TestRegistryConcurrentUpdates(t *testing.T) {
	r := NewRegistry()
	r.Insert(Item{ID: "x", Status: StatusIdle})
	r.Update("x", Patch{Status: StatusUploading})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := 0; p <= 100; p++ {
				r.Update("x", Patch{Progress: pct(float64(p))})
				r.Snapshot()
			}
		}()
	}
	wg.Wait()

	it, _ := r.Get("x")
	assert.Equal(t, float64(100), it.Progress)
}
