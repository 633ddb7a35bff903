package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncer_CoalescesBurst(t *testing.T) {
	var runs atomic.Int32
	d := New(50*time.Millisecond, func() { runs.Add(1) })
	defer d.Stop()

	for range 5 {
		d.Trigger()
		time.Sleep(10 * time.Millisecond)
	}
	assert.True(t, d.Pending())

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, d.Pending())
}

func TestDebouncer_LastTriggerRestartsDelay(t *testing.T) {
	var ranAt atomic.Int64
	d := New(80*time.Millisecond, func() { ranAt.Store(time.Now().UnixNano()) })
	defer d.Stop()

	d.Trigger()
	time.Sleep(50 * time.Millisecond)
	last := time.Now()
	d.Trigger()

	assert.Eventually(t, func() bool { return ranAt.Load() != 0 }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, time.Duration(ranAt.Load()-last.UnixNano()), 70*time.Millisecond)
}

func TestDebouncer_Flush(t *testing.T) {
	var runs atomic.Int32
	d := New(time.Hour, func() { runs.Add(1) })
	defer d.Stop()

	assert.False(t, d.Flush())

	d.Trigger()
	assert.True(t, d.Flush())
	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, d.Pending())
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	var runs atomic.Int32
	d := New(20*time.Millisecond, func() { runs.Add(1) })

	d.Trigger()
	d.Stop()
	d.Trigger()

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, runs.Load())
	assert.False(t, d.Pending())
}
