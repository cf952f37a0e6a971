// Package codec преобразует сетку уровня во внешние представления и обратно:
// 1D patch, бинарный LBL, текстовый LBL, AS3 и сжатый транспортный формат.
package codec

import (
	"fmt"

	"github.com/annel0/sks-levelbuilder/internal/level"
)

// ToPatch возвращает идентификаторы редактора всех клеток в порядке индексов
func ToPatch(g *level.Grid) []string {
	return g.Patch()
}

// FromPatch восстанавливает сетку из 1D patch.
// Длина должна быть ровно level.Size.
func FromPatch(patch []string) (*level.Grid, error) {
	if len(patch) != level.Size {
		return nil, level.NewError(level.KindInvalidLevelData,
			fmt.Sprintf("patch has %d cells, expected %d", len(patch), level.Size))
	}

	cells := make([]level.Block, level.Size)
	for i, id := range patch {
		cells[i] = level.ParseBlock(id)
	}

	g := level.NewGrid()
	if err := g.Replace(cells); err != nil {
		return nil, err
	}
	return g, nil
}

// EncodeBlockLBL переводит идентификатор редактора в код LBL
func EncodeBlockLBL(id string) (string, bool) {
	return level.ParseBlock(id).LBL()
}
