package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDo_LoadsOnceAndCaches(t *testing.T) {
	c := New[string](nil)
	var loads atomic.Int32
	load := func(context.Context) (string, error) {
		loads.Add(1)
		return "value", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.Do(context.Background(), "k", load)
		require.NoError(t, err)
		assert.Equal(t, "value", v)
	}
	assert.Equal(t, int32(1), loads.Load())
	assert.Equal(t, 1, c.Len())
}

func TestDo_ConcurrentMissesShareLoad(t *testing.T) {
	c := New[int](nil)
	release := make(chan struct{})
	var loads atomic.Int32
	load := func(context.Context) (int, error) {
		loads.Add(1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Do(context.Background(), "k", load)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestDo_KeepPredicateAndErrors(t *testing.T) {
	c := New[*string](func(v *string) bool { return v != nil })
	ctx := context.Background()

	v, err := c.Do(ctx, "missing", func(context.Context) (*string, error) { return nil, nil })
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Equal(t, 0, c.Len(), "nil results are not cached")

	boom := errors.New("boom")
	_, err = c.Do(ctx, "err", func(context.Context) (*string, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	s := "found"
	v, err = c.Do(ctx, "found", func(context.Context) (*string, error) { return &s, nil })
	require.NoError(t, err)
	assert.Equal(t, "found", *v)
	assert.Equal(t, 1, c.Len())
}

func TestDo_CallerCancellationDoesNotAbortLoad(t *testing.T) {
	c := New[string](nil)
	release := make(chan struct{})
	loaded := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := c.Do(ctx, "k", func(lctx context.Context) (string, error) {
		defer close(loaded)
		<-release
		if lctx.Err() != nil {
			return "", lctx.Err()
		}
		return "late", nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	<-loaded
	require.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, 5*time.Millisecond)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "late", v)
}

func TestPutAndReset(t *testing.T) {
	c := New[int](nil)
	c.Put("a", 1)
	c.Put("a", 2)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, v, "last write wins")
	c.Reset()
	_, ok = c.Get("a")
	assert.False(t, ok)
}
