package level

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGridIsEmpty(t *testing.T) {
	g := NewGrid()

	patch := g.Patch()
	require.Len(t, patch, Size)
	for i, id := range patch {
		assert.Equal(t, EmptyID, id, "клетка %d должна быть пустой", i)
	}
	assert.False(t, g.Dark())
	assert.Equal(t, 0, g.CountNonEmpty())
}

func TestGridSetBounds(t *testing.T) {
	g := NewGrid()

	for _, i := range []int{0, 1, Width, Size - 1} {
		require.NoError(t, g.Set(i, NewBlock(KindBlock)))
		assert.Equal(t, "b0", g.Patch()[i])
	}

	for _, i := range []int{-1, Size, Size + 100} {
		err := g.Set(i, NewBlock(KindBlock))
		assert.True(t, errors.Is(err, ErrInvalidIndex), "индекс %d должен давать ErrInvalidIndex, получено %v", i, err)
	}
	assert.Equal(t, 4, g.CountNonEmpty(), "ошибочные вызовы не должны менять сетку")
}

func TestGridSetNormalizesBlocks(t *testing.T) {
	g := NewGrid()

	// тег из промежутка каталога
	require.NoError(t, g.Set(0, Block{Kind: 50}))
	b, err := g.At(0)
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, b.Kind)
	assert.Equal(t, "kind50", g.Patch()[0])
	assert.NotEqual(t, EmptyID, g.Patch()[0])

	// исходный текст сохраняется как нераспознанный идентификатор
	require.NoError(t, g.Set(1, Block{Kind: 77, Text: "zz"}))
	assert.Equal(t, "zz", g.Patch()[1])

	// у обычного блока текст отбрасывается
	require.NoError(t, g.Set(2, Block{Kind: KindBlock, Text: "junk"}))
	b, _ = g.At(2)
	assert.Equal(t, NewBlock(KindBlock), b)

	require.NoError(t, g.Set(3, NewNote("C4")))
	b, _ = g.At(3)
	assert.Equal(t, "C4", b.Text)

	cells := make([]Block, Size)
	cells[5] = Block{Kind: KindLock, Text: "x"}
	cells[6] = Block{Kind: 60}
	require.NoError(t, g.Replace(cells))
	got := g.Cells()
	assert.Equal(t, NewBlock(KindLock), got[5])
	assert.Equal(t, KindUnknown, got[6].Kind)

	g.Fill(Block{Kind: KindKey, Text: "y"})
	b, _ = g.At(100)
	assert.Equal(t, NewBlock(KindKey), b)
}

func TestGridCoords(t *testing.T) {
	x, y := Coords(0)
	assert.Equal(t, [2]int{0, 0}, [2]int{x, y})

	x, y = Coords(33)
	assert.Equal(t, [2]int{1, 1}, [2]int{x, y})

	x, y = Coords(Size - 1)
	assert.Equal(t, [2]int{Width - 1, Height - 1}, [2]int{x, y})

	i, err := IndexOf(5, 2)
	require.NoError(t, err)
	assert.Equal(t, 2*Width+5, i)

	_, err = IndexOf(Width, 0)
	assert.ErrorIs(t, err, ErrInvalidIndex)
}

func TestGridReplaceRejectsWrongLength(t *testing.T) {
	g := NewGrid()
	require.NoError(t, g.Set(3, NewBlock(KindKey)))
	before := g.Patch()

	err := g.Replace(make([]Block, Size-1))
	assert.ErrorIs(t, err, ErrInvalidLevelData)
	assert.Equal(t, before, g.Patch(), "сетка не должна меняться при ошибке импорта")

	cells := make([]Block, Size)
	cells[10] = NewNote("C4")
	require.NoError(t, g.Replace(cells))
	assert.Equal(t, "Note:C4", g.Patch()[10])
	assert.Equal(t, EmptyID, g.Patch()[3])
}

func TestGridCellsIsCopy(t *testing.T) {
	g := NewGrid()
	cells := g.Cells()
	cells[0] = NewBlock(KindBlock)

	b, err := g.At(0)
	require.NoError(t, err)
	assert.True(t, b.IsEmpty(), "изменение копии не должно влиять на сетку")
}

func TestGridCloneAndEqual(t *testing.T) {
	g := NewGrid()
	require.NoError(t, g.Set(0, NewBlock(KindBlock)))
	g.SetDark(true)
	g.SetNumber(NumberLevel(7))

	c := g.Clone()
	assert.True(t, g.Equal(c))

	require.NoError(t, c.Set(1, NewBlock(KindLock)))
	assert.False(t, g.Equal(c))

	c = g.Clone()
	c.SetDark(false)
	assert.False(t, g.Equal(c), "тёмный режим участвует в сравнении")
	assert.False(t, g.Equal(nil))
}

func TestGenerateIsDeterministic(t *testing.T) {
	a, b := NewGrid(), NewGrid()
	Generate(a, 42)
	Generate(b, 42)

	assert.True(t, a.Equal(b))
	assert.Greater(t, a.CountNonEmpty(), 2*Width)

	var spawns, exits int
	for _, c := range a.Cells() {
		switch c.Kind {
		case KindSkeleton:
			spawns++
		case KindExit:
			exits++
		}
	}
	assert.Equal(t, 1, spawns)
	assert.Equal(t, 1, exits)
}

func TestParseLevelNumber(t *testing.T) {
	assert.Equal(t, NumberLevel(12), ParseLevelNumber("12"))
	assert.Equal(t, TextLevel("bonus"), ParseLevelNumber("bonus"))
	assert.False(t, ParseLevelNumber("").Set)
	assert.Equal(t, "12", NumberLevel(12).String())
	assert.Equal(t, "", LevelNumber{}.String())
}
