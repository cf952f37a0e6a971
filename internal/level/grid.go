package level

import (
	"fmt"
)

// Размеры уровня фиксированы форматом игры
const (
	Width  = 32
	Height = 18
	Size   = Width * Height
)

// Grid сетка блоков уровня 32x18: единственный источник истины о содержимом.
// Grid не потокобезопасна: владелец (builder.LevelBuilder) сериализует доступ.
type Grid struct {
	cells  [Size]Block
	dark   bool
	number LevelNumber
}

// NewGrid создаёт пустую сетку (все клетки "null")
func NewGrid() *Grid {
	return &Grid{}
}

// Coords преобразует линейный индекс в координаты клетки
func Coords(index int) (x, y int) {
	return index % Width, index / Width
}

// IndexOf преобразует координаты клетки в линейный индекс
func IndexOf(x, y int) (int, error) {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return 0, NewError(KindInvalidIndex, fmt.Sprintf("(%d,%d)", x, y))
	}
	return y*Width + x, nil
}

// ValidIndex true, если индекс попадает в [0, Size)
func ValidIndex(index int) bool {
	return index >= 0 && index < Size
}

// Set записывает блок в клетку. Запись безусловная: повторная запись
// того же значения тоже считается изменением. Блок сохраняется
// в нормализованном виде (см. Block.Normalize).
func (g *Grid) Set(index int, b Block) error {
	if !ValidIndex(index) {
		return NewError(KindInvalidIndex, fmt.Sprintf("%d not in [0,%d)", index, Size))
	}
	g.cells[index] = b.Normalize()
	return nil
}

// At возвращает блок клетки
func (g *Grid) At(index int) (Block, error) {
	if !ValidIndex(index) {
		return Block{}, NewError(KindInvalidIndex, fmt.Sprintf("%d not in [0,%d)", index, Size))
	}
	return g.cells[index], nil
}

// Cells возвращает копию всех клеток в порядке индексов
func (g *Grid) Cells() []Block {
	out := make([]Block, Size)
	copy(out, g.cells[:])
	return out
}

// Patch возвращает идентификаторы редактора всех клеток (1D patch)
func (g *Grid) Patch() []string {
	out := make([]string, Size)
	for i, b := range g.cells {
		out[i] = b.String()
	}
	return out
}

// Replace заменяет все клетки целиком. При неверной длине сетка не меняется.
func (g *Grid) Replace(cells []Block) error {
	if len(cells) != Size {
		return NewError(KindInvalidLevelData, fmt.Sprintf("expected %d cells, got %d", Size, len(cells)))
	}
	for i, b := range cells {
		g.cells[i] = b.Normalize()
	}
	return nil
}

// Fill записывает один блок во все клетки
func (g *Grid) Fill(b Block) {
	b = b.Normalize()
	for i := range g.cells {
		g.cells[i] = b
	}
}

// SetDark задаёт флаг тёмного режима
func (g *Grid) SetDark(dark bool) { g.dark = dark }

// Dark возвращает флаг тёмного режима
func (g *Grid) Dark() bool { return g.dark }

// SetNumber задаёт номер уровня
func (g *Grid) SetNumber(n LevelNumber) { g.number = n }

// Number возвращает номер уровня
func (g *Grid) Number() LevelNumber { return g.number }

// Clone создаёт независимую копию сетки
func (g *Grid) Clone() *Grid {
	c := *g
	return &c
}

// Equal сравнивает клетки, тёмный режим и номер уровня
func (g *Grid) Equal(other *Grid) bool {
	if other == nil {
		return false
	}
	return g.cells == other.cells && g.dark == other.dark && g.number == other.number
}

// CountNonEmpty возвращает количество непустых клеток
func (g *Grid) CountNonEmpty() int {
	n := 0
	for _, b := range g.cells {
		if !b.IsEmpty() {
			n++
		}
	}
	return n
}
