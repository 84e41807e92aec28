package delay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	cfg := Config{}
	require.NoError(t, cfg.Validate())

	bad := Config{BaseDelay: -time.Second}
	assert.Error(t, bad.Validate())
}

func TestInjector_DelayWithoutJitter(t *testing.T) {
	i, err := New(Config{BaseDelay: 30 * time.Millisecond})
	require.NoError(t, err)

	assert.Equal(t, 30*time.Millisecond, i.Delay("host-a"))
}

func TestInjector_DelayWithJitterStaysInBand(t *testing.T) {
	base := 50 * time.Millisecond
	jitter := 20 * time.Millisecond
	i, err := New(Config{BaseDelay: base, Jitter: jitter})
	require.NoError(t, err)

	for n := 0; n < 50; n++ {
		d := i.Delay("host-a")
		assert.GreaterOrEqual(t, d, base-jitter)
		assert.LessOrEqual(t, d, base+jitter)
	}
}

func TestInjector_JitterNeverGoesNegative(t *testing.T) {
	i, err := New(Config{BaseDelay: time.Millisecond, Jitter: 10 * time.Millisecond})
	require.NoError(t, err)

	for n := 0; n < 50; n++ {
		assert.GreaterOrEqual(t, i.Delay("host-a"), time.Duration(0))
	}
}

func TestInjector_HostOverride(t *testing.T) {
	i, err := New(Config{BaseDelay: 10 * time.Millisecond})
	require.NoError(t, err)

	i.SetHostDelay("slow-host", 80*time.Millisecond)

	assert.Equal(t, 80*time.Millisecond, i.Delay("slow-host"))
	assert.Equal(t, 10*time.Millisecond, i.Delay("other-host"), "其他 host 仍用基础延迟")

	i.ClearHostDelay("slow-host")
	assert.Equal(t, 10*time.Millisecond, i.Delay("slow-host"))
}

func TestInjector_ApplySleeps(t *testing.T) {
	i, err := New(Config{BaseDelay: 30 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	slept := i.Apply("host-a")
	elapsed := time.Since(start)

	assert.Equal(t, 30*time.Millisecond, slept)
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestInjector_ApplyZeroReturnsImmediately(t *testing.T) {
	i, err := New(Config{})
	require.NoError(t, err)

	start := time.Now()
	slept := i.Apply("host-a")

	assert.Zero(t, slept)
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}
