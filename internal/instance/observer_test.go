package instance

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObserver_CountsTicks(t *testing.T) {
	o := newObserver()
	for range 5 {
		assert.True(t, o.tick())
	}
	assert.Equal(t, 5, o.Pending())

	assert.True(t, o.Next(time.Millisecond))
	assert.Equal(t, 4, o.Pending())
	assert.Equal(t, 4, o.Drain())
	assert.Equal(t, 0, o.Pending())
}

func TestObserver_NextTimesOut(t *testing.T) {
	o := newObserver()
	start := time.Now()
	assert.False(t, o.Next(5*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestObserver_NextWakesOnTick(t *testing.T) {
	o := newObserver()
	go func() {
		time.Sleep(5 * time.Millisecond)
		o.tick()
	}()
	assert.True(t, o.Next(time.Second))
}

func TestObserver_ClosedRejectsTicks(t *testing.T) {
	o := newObserver()
	o.Close()
	assert.False(t, o.tick())
	assert.Equal(t, 0, o.Pending())
}

func TestObserverRegistry_Broadcast(t *testing.T) {
	var r observerRegistry
	a := r.register()
	b := r.register()
	b.Close()

	assert.Equal(t, 1, r.broadcast())
	assert.Equal(t, 1, a.Pending())
	assert.Equal(t, 1, r.len())
}

func TestObserverRegistry_ConcurrentRegister(t *testing.T) {
	var r observerRegistry
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.register()
			r.broadcast()
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, r.len())
}
