package dedup

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pixzlo/bridge/pkg/cache"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestDoCollapsesConcurrentCallers(t *testing.T) {
	var (
		g       = NewGroup[string]()
		calls   atomic.Int32
		release = make(chan struct{})
		wg      sync.WaitGroup
	)

	producer := func() (string, error) {
		calls.Add(1)
		<-release
		return "result", nil
	}

	const n = 10
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := g.Do("k", producer)
			assert.Nil(t, err)
			results[i] = v
		}(i)
	}

	// let every caller reach the group before the producer settles
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, "result", v)
	}
}

func TestDoSharesFailure(t *testing.T) {
	var (
		g       = NewGroup[int]()
		calls   atomic.Int32
		release = make(chan struct{})
		wg      sync.WaitGroup
	)

	boom := errors.New("producer failure")
	producer := func() (int, error) {
		calls.Add(1)
		<-release
		return 0, boom
	}

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Do("k", producer)
			assert.Equal(t, boom, err)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())

	// settlement removed the registration: the next call retries
	v, err := g.Do("k", func() (int, error) { return 42, nil })
	assert.Nil(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoIndependentKeys(t *testing.T) {
	g := NewGroup[string]()

	a, err := g.Do("a", func() (string, error) { return "a", nil })
	assert.Nil(t, err)
	b, err := g.Do("b", func() (string, error) { return "b", nil })
	assert.Nil(t, err)

	assert.Equal(t, "a", a)
	assert.Equal(t, "b", b)
}

func TestForget(t *testing.T) {
	var (
		g       = NewGroup[int]()
		started = make(chan struct{})
		release = make(chan struct{})
	)

	go func() {
		_, _ = g.Do("k", func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
	}()

	<-started
	g.Forget("k")

	// a fresh producer runs despite the first still being in flight
	v, err := g.Do("k", func() (int, error) { return 2, nil })
	assert.Nil(t, err)
	assert.Equal(t, 2, v)

	close(release)
}

func TestGetOrFetchPopulatesOnSuccess(t *testing.T) {
	var (
		f     = NewFetcher(cache.New[string](time.Minute))
		calls atomic.Int32
	)

	fetch := func() (string, error) {
		calls.Add(1)
		return "value", nil
	}

	v, err := f.GetOrFetch("k", fetch)
	assert.Nil(t, err)
	assert.Equal(t, "value", v)

	v, err = f.GetOrFetch("k", fetch)
	assert.Nil(t, err)
	assert.Equal(t, "value", v)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrFetchFailureLeavesCacheClean(t *testing.T) {
	f := NewFetcher(cache.New[string](time.Minute))

	_, err := f.GetOrFetch("k", func() (string, error) {
		return "", errors.New("fetch failure")
	})
	assert.NotNil(t, err)
	assert.Zero(t, f.Cache().Len())

	v, err := f.GetOrFetch("k", func() (string, error) { return "ok", nil })
	assert.Nil(t, err)
	assert.Equal(t, "ok", v)
}

func TestInvalidateRevokesInFlightFetch(t *testing.T) {
	var (
		f       = NewFetcher(cache.New[string](time.Minute))
		started = make(chan struct{})
		release = make(chan struct{})
		done    = make(chan struct{})
	)

	go func() {
		defer close(done)
		v, err := f.GetOrFetch("k", func() (string, error) {
			close(started)
			<-release
			return "stale", nil
		})
		// the caller that was already waiting still gets the result
		assert.Nil(t, err)
		assert.Equal(t, "stale", v)
	}()

	<-started
	f.Invalidate("k")
	close(release)
	<-done

	// the revoked settlement must not repopulate the cache
	_, ok := f.Cache().Get("k")
	assert.False(t, ok)

	v, err := f.GetOrFetch("k", func() (string, error) { return "fresh", nil })
	assert.Nil(t, err)
	assert.Equal(t, "fresh", v)

	v, ok = f.Cache().Get("k")
	assert.True(t, ok)
	assert.Equal(t, "fresh", v)
}

func TestInvalidateAllRevokesInFlightFetch(t *testing.T) {
	var (
		f       = NewFetcher(cache.New[string](time.Minute))
		started = make(chan struct{})
		release = make(chan struct{})
		done    = make(chan struct{})
	)

	go func() {
		defer close(done)
		_, _ = f.GetOrFetch("k", func() (string, error) {
			close(started)
			<-release
			return "stale", nil
		})
	}()

	<-started
	f.InvalidateAll()
	close(release)
	<-done

	_, ok := f.Cache().Get("k")
	assert.False(t, ok)
}

func TestInvalidateOtherKeyDoesNotRevoke(t *testing.T) {
	var (
		f       = NewFetcher(cache.New[string](time.Minute))
		started = make(chan struct{})
		release = make(chan struct{})
		done    = make(chan struct{})
	)

	go func() {
		defer close(done)
		_, _ = f.GetOrFetch("k", func() (string, error) {
			close(started)
			<-release
			return "value", nil
		})
	}()

	<-started
	f.Invalidate("unrelated")
	close(release)
	<-done

	v, ok := f.Cache().Get("k")
	assert.True(t, ok)
	assert.Equal(t, "value", v)
}

func TestGetOrFetchConcurrent(t *testing.T) {
	var (
		f       = NewFetcher(cache.New[string](time.Minute))
		calls   atomic.Int32
		release = make(chan struct{})
		wg      sync.WaitGroup
	)

	const n = 8
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := f.GetOrFetch("k", func() (string, error) {
				calls.Add(1)
				<-release
				return "shared", nil
			})
			assert.Nil(t, err)
			assert.Equal(t, "shared", v)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}
