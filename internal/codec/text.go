package codec

import (
	"fmt"
	"strings"

	"github.com/annel0/sks-levelbuilder/internal/level"
)

// ErrInvalidText нота с переводом строки не помещается в текстовый LBL
var ErrInvalidText = level.NewError(level.KindDecode, "invalid text")

// EncodeLBLText кодирует сетку в текстовый LBL: по одному коду на строку.
// Тёмный режим и номер уровня этим форматом не переносятся.
func EncodeLBLText(g *level.Grid) (string, error) {
	var sb strings.Builder
	sb.Grow(level.Size * 3)

	for i, b := range g.Cells() {
		code, ok := b.LBL()
		if !ok {
			return "", fmt.Errorf("cell %d (%s): %w", i, b.Kind, ErrOutsideCatalog)
		}
		if strings.ContainsAny(code, "\r\n") {
			return "", fmt.Errorf("cell %d: note contains line break: %w", i, ErrInvalidText)
		}
		sb.WriteString(code)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// DecodeLBLText разбирает текстовый LBL. Неверное число строк:
// ErrInvalidLevelData, неизвестный код: ErrDecode.
func DecodeLBLText(data string) (*level.Grid, error) {
	lines := splitLines(data)
	if len(lines) != level.Size {
		return nil, level.NewError(level.KindInvalidLevelData,
			fmt.Sprintf("lbl has %d lines, expected %d", len(lines), level.Size))
	}

	cells := make([]level.Block, level.Size)
	for i, line := range lines {
		b, ok := level.ParseLBL(line)
		if !ok {
			return nil, decodeError("unknown block %q on line %d", line, i+1)
		}
		cells[i] = b
	}

	g := level.NewGrid()
	if err := g.Replace(cells); err != nil {
		return nil, err
	}
	return g, nil
}

// splitLines режет текст по строкам, терпимо к \r\n и финальному переводу строки
func splitLines(data string) []string {
	data = strings.ReplaceAll(data, "\r\n", "\n")
	data = strings.TrimSuffix(data, "\n")
	if data == "" {
		return nil
	}
	return strings.Split(data, "\n")
}
