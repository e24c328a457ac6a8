package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBreakerStartsClosed(t *testing.T) {
	b := New("directory")
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "directory", b.Name())
}

func TestBreakerOpensOnConsecutiveFailures(t *testing.T) {
	b := New("directory", WithFailureThreshold(3))

	for i := 0; i < 2; i++ {
		open, change := b.RecordFailure()
		assert.False(t, open)
		assert.False(t, change.Opened)
	}

	open, change := b.RecordFailure()
	assert.True(t, open)
	assert.True(t, change.Opened)

	open, change = b.RecordFailure()
	assert.True(t, open)
	assert.False(t, change.Opened, "already open")
}

func TestBreakerSuccessInterruptsFailureRun(t *testing.T) {
	b := New("directory", WithFailureThreshold(2))

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	assert.False(t, b.IsOpen())

	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestBreakerClosesOnConsecutiveSuccesses(t *testing.T) {
	b := New("directory", WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()

	closed, change := b.RecordSuccess()
	assert.False(t, closed)
	assert.False(t, change.Closed)

	// a failure while open restarts the success run
	b.RecordFailure()
	b.RecordSuccess()
	assert.True(t, b.IsOpen())

	closed, change = b.RecordSuccess()
	assert.True(t, closed)
	assert.True(t, change.Closed)
}

func TestBreakerReset(t *testing.T) {
	b := New("directory", WithFailureThreshold(1))
	b.RecordFailure()
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerConcurrentUse(t *testing.T) {
	b := New("directory", WithFailureThreshold(1000))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordFailure()
			b.RecordSuccess()
		}()
	}
	wg.Wait()
	assert.False(t, b.IsOpen())
}
