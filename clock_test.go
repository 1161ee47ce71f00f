package fiatbridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewManualClock(start)

	assert.Equal(t, start, c.Now())

	c.Advance(time.Minute)
	assert.Equal(t, start.Add(time.Minute), c.Now())

	c.Advance(-time.Hour)
	assert.Equal(t, start.Add(time.Minute), c.Now())

	c.Set(start)
	assert.Equal(t, start.Add(time.Minute), c.Now())

	c.Set(start.Add(time.Hour))
	assert.Equal(t, start.Add(time.Hour), c.Now())
}

func TestSystemClockIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, SystemClock.Now().Location())
}

func TestKeyedMutex(t *testing.T) {
	var k keyedMutex

	unlockA := k.Lock("a")
	unlockB := k.Lock("b")

	acquired := make(chan struct{})
	released := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
		close(released)
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(20 * time.Millisecond):
	}

	unlockA()
	<-acquired
	<-released
	unlockB()

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.locks)
}
