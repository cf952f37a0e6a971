// Package builder объединяет сетку, кеш изображения и кодеки в один
// объект сессии редактора уровней.
package builder

import (
	"fmt"
	"image"
	"sync"

	"github.com/annel0/sks-levelbuilder/internal/codec"
	"github.com/annel0/sks-levelbuilder/internal/level"
	"github.com/annel0/sks-levelbuilder/internal/logging"
	"github.com/annel0/sks-levelbuilder/internal/render"
)

// Options настройки LevelBuilder
type Options struct {
	// Rasterizer внешний растеризатор; nil: render.PaletteRasterizer
	Rasterizer render.Rasterizer
	// DarkInvalidates смена тёмного режима сбрасывает кеш изображения.
	// false: кешируется светлое изображение, а тёмный режим накладывается
	// поверх него через render.Darkener; растеризатор без Darkener
	// принудительно переводит политику в true.
	DarkInvalidates bool
	// Metrics метрики растеризации (может быть nil)
	Metrics *render.Metrics
	// Logger логгер сессии; nil: логгер компонента "builder"
	Logger *logging.Logger
}

// DefaultOptions настройки по умолчанию: смена тёмного режима сбрасывает кеш
func DefaultOptions() Options {
	return Options{DarkInvalidates: true}
}

// LevelBuilder фасад сессии редактора.
//
// Флаги устаревания два и они разные:
//   - cache.Stale(): изображение не соответствует сетке;
//   - dirty: окружающему UI нужно перерисоваться.
//
// Любое устаревание кеша выставляет dirty, но dirty может выставляться
// и без него (например, включение сетки-оверлея).
// Все методы сериализуются одним мьютексом.
type LevelBuilder struct {
	mu         sync.Mutex
	grid       *level.Grid
	cache      *render.Cache
	rasterizer render.Rasterizer
	opts       Options
	logger     *logging.Logger

	// darkener задан только при DarkInvalidates == false.
	// darkImg производное от darkBase изображение для тёмного режима.
	darkener render.Darkener
	darkBase *image.RGBA
	darkImg  *image.RGBA

	dirty       bool
	gridOverlay bool
}

// New создаёт сессию с пустой сеткой
func New(opts Options) *LevelBuilder {
	if opts.Rasterizer == nil {
		opts.Rasterizer = render.NewPaletteRasterizer()
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetBuilderLogger()
	}

	var darkener render.Darkener
	if !opts.DarkInvalidates {
		if d, ok := opts.Rasterizer.(render.Darkener); ok {
			darkener = d
		} else {
			opts.Logger.Warn("rasterizer %T cannot apply dark mode separately, dark mode will invalidate the image", opts.Rasterizer)
			opts.DarkInvalidates = true
		}
	}

	return &LevelBuilder{
		darkener:    darkener,
		grid:        level.NewGrid(),
		cache:       render.NewCache(opts.Metrics),
		rasterizer:  opts.Rasterizer,
		opts:        opts,
		logger:      opts.Logger,
		dirty:       true,
		gridOverlay: true,
	}
}

// markChanged фиксирует изменение содержимого: кеш устарел, UI грязный
func (lb *LevelBuilder) markChanged() {
	lb.cache.Invalidate()
	lb.dirty = true
}

// AddBlock записывает блок в клетку index
func (lb *LevelBuilder) AddBlock(index int, b level.Block) error {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if err := lb.grid.Set(index, b); err != nil {
		return err
	}
	lb.markChanged()
	lb.logger.Trace("addBlock %d = %s", index, b)
	return nil
}

// AddBlockID записывает блок по идентификатору редактора.
// Неизвестный идентификатор не ошибка: он сохраняется и рисуется заглушкой.
func (lb *LevelBuilder) AddBlockID(index int, id string) error {
	b := level.ParseBlock(id)
	if b.Kind == level.KindUnknown {
		lb.logger.Debug("addBlock: unknown block %q at %d", id, index)
	}
	return lb.AddBlock(index, b)
}

// LevelData возвращает идентификаторы редактора всех клеток
func (lb *LevelBuilder) LevelData() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.grid.Patch()
}

// Cells возвращает копию клеток
func (lb *LevelBuilder) Cells() []level.Block {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.grid.Cells()
}

// Snapshot возвращает независимую копию сетки
func (lb *LevelBuilder) Snapshot() *level.Grid {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.grid.Clone()
}

// ExportLevel возвращает каноническое представление уровня (1D patch)
func (lb *LevelBuilder) ExportLevel() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return codec.ToPatch(lb.grid)
}

// Export кодирует уровень в указанный формат
func (lb *LevelBuilder) Export(format codec.FileFormat) ([]byte, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return codec.Encode(lb.grid, format)
}

// Import заменяет уровень данными любого поддерживаемого формата.
// При ошибке уровень не меняется.
func (lb *LevelBuilder) Import(data []byte) (codec.FileFormat, error) {
	g, format, err := codec.Decode(data)
	if err != nil {
		logging.LogDecodeError("import", err, data)
		return format, err
	}

	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.apply(g, format.CarriesDark())
	lb.logger.Debug("import: %s, %d blocks", format, g.CountNonEmpty())
	return format, nil
}

// ImportPatch заменяет уровень 1D patch'ем. Длина должна быть level.Size.
func (lb *LevelBuilder) ImportPatch(patch []string) error {
	g, err := codec.FromPatch(patch)
	if err != nil {
		return err
	}

	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.apply(g, false)
	return nil
}

// Load заменяет уровень копией g вместе с тёмным режимом
func (lb *LevelBuilder) Load(g *level.Grid) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.apply(g, true)
}

// apply переносит содержимое декодированной сетки. Номер уровня
// переносится, только если он есть в данных.
func (lb *LevelBuilder) apply(g *level.Grid, withDark bool) {
	// Длина гарантирована декодером
	_ = lb.grid.Replace(g.Cells())
	if n := g.Number(); n.Set {
		lb.grid.SetNumber(n)
	}
	if withDark {
		lb.grid.SetDark(g.Dark())
	}
	lb.markChanged()
}

// SetDark задаёт тёмный режим. Сбрасывает ли это кеш изображения,
// определяет Options.DarkInvalidates; UI помечается грязным всегда.
func (lb *LevelBuilder) SetDark(dark bool) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.grid.SetDark(dark)
	if lb.opts.DarkInvalidates {
		lb.cache.Invalidate()
	}
	lb.dirty = true
}

// Dark возвращает флаг тёмного режима
func (lb *LevelBuilder) Dark() bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.grid.Dark()
}

// SetLevel задаёт номер уровня (используется экспортом AS3 и LBL).
// Номер не рисуется, поэтому изображение остаётся актуальным,
// но UI помечается грязным.
func (lb *LevelBuilder) SetLevel(n level.LevelNumber) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if lb.grid.Number() == n {
		return
	}
	lb.grid.SetNumber(n)
	lb.dirty = true
}

// Level возвращает номер уровня
func (lb *LevelBuilder) Level() level.LevelNumber {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.grid.Number()
}

// Generate заполняет уровень черновиком по шуму
func (lb *LevelBuilder) Generate(seed int64) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	level.Generate(lb.grid, seed)
	lb.markChanged()
	lb.logger.Debug("generate: seed=%d", seed)
}

// Clear очищает все клетки
func (lb *LevelBuilder) Clear() {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.grid.Fill(level.Empty)
	lb.markChanged()
}

// GetImage возвращает изображение уровня, пересчитывая его при необходимости
func (lb *LevelBuilder) GetImage() (*image.RGBA, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.image()
}

// image растеризатор получает снимок сетки, а не саму сетку
func (lb *LevelBuilder) image() (*image.RGBA, error) {
	snapshot := lb.grid.Clone()
	if lb.darkener != nil {
		snapshot.SetDark(false)
	}

	img, err := lb.cache.Request(snapshot, lb.rasterizer)
	if err != nil {
		lb.logger.Error("render failed: %v", err)
		return nil, fmt.Errorf("get image: %w", err)
	}
	if lb.darkener == nil || !lb.grid.Dark() {
		return img, nil
	}

	if lb.darkImg == nil || lb.darkBase != img {
		lb.darkImg = lb.darkener.ApplyDark(img)
		lb.darkBase = img
	}
	return lb.darkImg, nil
}

// DrawImage возвращает изображение для вывода и снимает флаг перерисовки
func (lb *LevelBuilder) DrawImage() (*image.RGBA, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	img, err := lb.image()
	if err != nil {
		return nil, err
	}
	lb.dirty = false
	return img, nil
}

// Renders количество растеризаций за время жизни сессии
func (lb *LevelBuilder) Renders() uint64 {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.cache.Renders()
}

// ImageStale true, если следующий GetImage вызовет растеризацию
func (lb *LevelBuilder) ImageStale() bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.cache.Stale()
}

// IsDirty true, если UI нужно перерисоваться
func (lb *LevelBuilder) IsDirty() bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.dirty
}

// ClearDirty снимает флаг перерисовки
func (lb *LevelBuilder) ClearDirty() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.dirty = false
}

// EnableGrid включает сетку-оверлей: только перерисовка UI, кеш не трогаем
func (lb *LevelBuilder) EnableGrid() { lb.setGridOverlay(true) }

// DisableGrid выключает сетку-оверлей
func (lb *LevelBuilder) DisableGrid() { lb.setGridOverlay(false) }

func (lb *LevelBuilder) setGridOverlay(on bool) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.gridOverlay = on
	lb.dirty = true
}

// Grid true, если UI должен рисовать сетку-оверлей
func (lb *LevelBuilder) Grid() bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.gridOverlay
}
