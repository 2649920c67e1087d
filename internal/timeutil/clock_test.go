package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	before := time.Now()
	assert.False(t, c.Now().Before(before))

	select {
	case <-c.After(time.Millisecond):
	case <-time.After(time.Second):
		t.Fatal("RealClock.After did not fire")
	}

	tk := c.NewTicker(time.Millisecond)
	defer tk.Stop()
	select {
	case <-tk.C():
	case <-time.After(time.Second):
		t.Fatal("RealClock ticker did not tick")
	}
}

func TestMockClock_AfterFiresOnAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	ch := c.After(2 * time.Second)
	c.Advance(time.Second)
	select {
	case <-ch:
		t.Fatal("fired before deadline")
	default:
	}

	c.Advance(time.Second)
	select {
	case got := <-ch:
		assert.Equal(t, start.Add(2*time.Second), got)
	default:
		t.Fatal("did not fire at deadline")
	}
}

func TestMockClock_SleepRecords(t *testing.T) {
	c := NewMockClock(time.Time{})
	c.Sleep(33 * time.Millisecond)
	c.Sleep(16 * time.Millisecond)
	assert.Equal(t, []time.Duration{33 * time.Millisecond, 16 * time.Millisecond}, c.Sleeps())
	assert.True(t, c.Now().IsZero(), "Sleep must not advance the clock")
}

func TestMockTicker(t *testing.T) {
	c := NewMockClock(time.Time{})
	tk := c.NewTicker(10 * time.Millisecond)
	require.Len(t, c.Tickers(), 1)

	c.Advance(10 * time.Millisecond)
	select {
	case <-tk.C():
	default:
		t.Fatal("ticker did not fire on advance")
	}

	tk.Stop()
	c.Advance(10 * time.Millisecond)
	select {
	case <-tk.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}
