// Package render отслеживает актуальность растрового изображения уровня
// и содержит эталонный растеризатор.
package render

import (
	"errors"
	"fmt"
	"image"
	"sync/atomic"

	"github.com/annel0/sks-levelbuilder/internal/level"
)

// Выходное разрешение растеризатора: внешний контракт, не настраивается
const (
	ImageWidth  = 1920
	ImageHeight = 1080

	// CellSize сторона клетки в пикселях (1920 / 32)
	CellSize = ImageWidth / level.Width
)

// ErrBitmapSize растеризатор вернул изображение не того размера
var ErrBitmapSize = errors.New("render: bitmap must be 1920x1080")

// Rasterizer превращает сетку в изображение 1920x1080 RGBA.
// Результат должен зависеть только от клеток и флага тёмного режима.
type Rasterizer interface {
	Render(g *level.Grid) (*image.RGBA, error)
}

// RasterizerFunc адаптер функции к Rasterizer
type RasterizerFunc func(g *level.Grid) (*image.RGBA, error)

// Render вызывает f(g)
func (f RasterizerFunc) Render(g *level.Grid) (*image.RGBA, error) { return f(g) }

// Darkener накладывает тёмный режим на готовое светлое изображение.
// ApplyDark(Render(светлая сетка)) должно совпадать с Render(тёмная сетка);
// src не изменяется.
type Darkener interface {
	ApplyDark(src *image.RGBA) *image.RGBA
}

// Cache хранит последнее изображение уровня и флаг устаревания.
// Пока stale == false, изображение соответствует сетке на момент расчёта.
// Изображение заменяется целиком и никогда не изменяется на месте.
type Cache struct {
	bitmap  atomic.Pointer[image.RGBA]
	stale   bool
	renders uint64
	metrics *Metrics
}

// NewCache создаёт устаревший кеш без изображения.
// metrics может быть nil.
func NewCache(metrics *Metrics) *Cache {
	return &Cache{stale: true, metrics: metrics}
}

// Invalidate помечает изображение устаревшим
func (c *Cache) Invalidate() {
	c.stale = true
}

// Stale true, если следующий запрос вызовет растеризацию
func (c *Cache) Stale() bool {
	return c.stale
}

// Renders количество успешных растеризаций
func (c *Cache) Renders() uint64 {
	return c.renders
}

// Request возвращает изображение уровня. Растеризатор вызывается не более
// одного раза за период устаревания. При ошибке кеш остаётся устаревшим.
func (c *Cache) Request(g *level.Grid, r Rasterizer) (*image.RGBA, error) {
	if !c.stale {
		if bmp := c.bitmap.Load(); bmp != nil {
			c.metrics.hit()
			return bmp, nil
		}
	}

	timer := c.metrics.startRender()
	bmp, err := r.Render(g)
	if err != nil {
		c.metrics.renderFailed()
		return nil, fmt.Errorf("render: %w", err)
	}
	if bmp == nil || bmp.Rect.Dx() != ImageWidth || bmp.Rect.Dy() != ImageHeight {
		c.metrics.renderFailed()
		return nil, ErrBitmapSize
	}
	timer()

	c.bitmap.Store(bmp)
	c.stale = false
	c.renders++
	return bmp, nil
}

// Bitmap последнее рассчитанное изображение (nil до первого расчёта),
// без пересчёта
func (c *Cache) Bitmap() *image.RGBA {
	return c.bitmap.Load()
}
