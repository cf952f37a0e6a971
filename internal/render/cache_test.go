package render

import (
	"errors"
	"image"
	"testing"

	"github.com/annel0/sks-levelbuilder/internal/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRasterizer считает вызовы и отдаёт пустое изображение нужного размера
type countingRasterizer struct {
	calls int
	err   error
	rect  image.Rectangle
}

func (c *countingRasterizer) Render(g *level.Grid) (*image.RGBA, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	rect := c.rect
	if rect.Empty() {
		rect = image.Rect(0, 0, ImageWidth, ImageHeight)
	}
	return image.NewRGBA(rect), nil
}

func TestCacheRendersOncePerDirtyPeriod(t *testing.T) {
	c := NewCache(nil)
	r := &countingRasterizer{}
	g := level.NewGrid()

	assert.True(t, c.Stale(), "новый кеш должен быть устаревшим")
	assert.Nil(t, c.Bitmap())

	first, err := c.Request(g, r)
	require.NoError(t, err)
	second, err := c.Request(g, r)
	require.NoError(t, err)

	assert.Equal(t, 1, r.calls, "второй запрос должен обслуживаться из кеша")
	assert.Same(t, first, second)
	assert.False(t, c.Stale())

	c.Invalidate()
	third, err := c.Request(g, r)
	require.NoError(t, err)
	assert.Equal(t, 2, r.calls)
	assert.NotSame(t, first, third, "изображение заменяется целиком")
	assert.Equal(t, uint64(2), c.Renders())
}

func TestCacheRenderErrorKeepsStale(t *testing.T) {
	c := NewCache(nil)
	r := &countingRasterizer{err: errors.New("boom")}

	_, err := c.Request(level.NewGrid(), r)
	require.Error(t, err)
	assert.True(t, c.Stale())

	r.err = nil
	_, err = c.Request(level.NewGrid(), r)
	require.NoError(t, err)
	assert.Equal(t, 2, r.calls)
}

func TestCacheRejectsWrongSize(t *testing.T) {
	c := NewCache(nil)
	r := &countingRasterizer{rect: image.Rect(0, 0, 800, 600)}

	_, err := c.Request(level.NewGrid(), r)
	assert.ErrorIs(t, err, ErrBitmapSize)
	assert.True(t, c.Stale())
	assert.Nil(t, c.Bitmap())
}

func TestCacheMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c := NewCache(m)
	r := &countingRasterizer{}

	for i := 0; i < 3; i++ {
		_, err := c.Request(level.NewGrid(), r)
		require.NoError(t, err)
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(m.renders))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.cacheHits))
}

func TestRasterizerFunc(t *testing.T) {
	called := false
	f := RasterizerFunc(func(g *level.Grid) (*image.RGBA, error) {
		called = true
		return image.NewRGBA(image.Rect(0, 0, ImageWidth, ImageHeight)), nil
	})

	_, err := NewCache(nil).Request(level.NewGrid(), f)
	require.NoError(t, err)
	assert.True(t, called)
}
