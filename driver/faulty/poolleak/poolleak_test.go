package poolleak

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/softdrv/driver"
	"github.com/ardnew/softdrv/pkg"
	"github.com/ardnew/softdrv/pool"
)

func TestLeakObservedByVerifier(t *testing.T) {
	ctx := context.Background()
	v := pool.NewVerifier(pool.NewHeap(0))
	cfg := NewConfig()
	cfg.Allocator = v

	d, err := New(cfg)
	require.NoError(t, err)

	h, err := d.AddDevice(ctx, driver.DeviceIdentity{HardwareID: driver.DefaultHardwareID})
	require.NoError(t, err)
	require.NoError(t, d.Start(ctx, h))

	n, err := d.Write(ctx, h, []byte("leak me"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	require.NoError(t, d.Stop(ctx, h))
	require.NoError(t, d.Remove(ctx, h))

	c := v.Counts(h.String())
	assert.Equal(t, 1, c.Allocations)
	assert.Equal(t, 0, c.Frees)
	assert.Greater(t, c.Allocations, c.Frees)
	assert.Equal(t, int64(BufferLength), c.BytesIn-c.BytesOut)

	leaked := v.Outstanding()
	require.Len(t, leaked, 1)
	assert.Equal(t, "s   ", leaked[0].Tag.String())

	err = d.Unload(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, pkg.ErrLeak)
	assert.True(t, pool.IsLeak(err))
}

func TestScopedBindingDoesNotLeak(t *testing.T) {
	ctx := context.Background()
	v := pool.NewVerifier(pool.NewHeap(0))
	cfg := NewConfig()
	cfg.Allocator = v

	d, err := driver.New(cfg)
	require.NoError(t, err)

	h, err := d.AddDevice(ctx, driver.DeviceIdentity{HardwareID: driver.DefaultHardwareID})
	require.NoError(t, err)
	require.NoError(t, d.Remove(ctx, h))

	assert.True(t, v.Counts(h.String()).Balanced())
	assert.NoError(t, d.Unload(ctx))
}
