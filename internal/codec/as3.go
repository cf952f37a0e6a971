package codec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/annel0/sks-levelbuilder/internal/level"
)

// Строка AS3-экспорта: lvlArray[<уровень>][<ряд>] = [B0, 00, "Note:C4", ...];
// Уровень: строковый литерал или текст без скобок, чтобы ноты вида
// `x][5] = [` не сдвигали границу индексов.
var as3Row = regexp.MustCompile(`^lvlArray\[("(?:[^"\\]|\\.)*"|[^\]"]*)\]\[(\d+)\]\s*=\s*\[(.*)\];?$`)

// EncodeAS3 кодирует сетку в исходный код AS3 (18 присваиваний по 32 блока).
// Без номера уровня используется 0.
func EncodeAS3(g *level.Grid) (string, error) {
	levelExpr := "0"
	if n := g.Number(); n.Set {
		if n.IsText {
			levelExpr = strconv.Quote(n.Str)
		} else {
			levelExpr = n.String()
		}
	}

	var sb strings.Builder
	for i, b := range g.Cells() {
		if i%level.Width == 0 {
			fmt.Fprintf(&sb, "lvlArray[%s][%d] = [", levelExpr, i/level.Width)
		}

		code, ok := b.LBL()
		if !ok {
			return "", fmt.Errorf("cell %d (%s): %w", i, b.Kind, ErrOutsideCatalog)
		}
		if b.Kind == level.KindNote {
			sb.WriteString(strconv.Quote(code))
		} else {
			sb.WriteString(code)
		}

		if i%level.Width == level.Width-1 {
			sb.WriteString("];\n")
		} else {
			sb.WriteString(", ")
		}
	}
	return sb.String(), nil
}

// DecodeAS3 разбирает AS3-экспорт. Ряды должны идти по порядку с нуля,
// в каждом ровно level.Width блоков, всего level.Height рядов.
func DecodeAS3(data string) (*level.Grid, error) {
	cells := make([]level.Block, 0, level.Size)
	var number level.LevelNumber
	row := 0

	for lineNo, line := range splitLines(data) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		m := as3Row.FindStringSubmatch(line)
		if m == nil {
			return nil, decodeError("line %d is not a lvlArray assignment", lineNo+1)
		}

		n, err := parseAS3Level(m[1])
		if err != nil {
			return nil, err
		}
		if row == 0 {
			number = n
		} else if n != number {
			return nil, decodeError("line %d: level %q differs from %q", lineNo+1, n.String(), number.String())
		}

		idx, err := strconv.Atoi(m[2])
		if err != nil || idx != row {
			return nil, level.NewError(level.KindInvalidLevelData,
				fmt.Sprintf("line %d: expected row %d, got %s", lineNo+1, row, m[2]))
		}

		items, err := splitAS3Items(m[3])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
		}
		if len(items) != level.Width {
			return nil, level.NewError(level.KindInvalidLevelData,
				fmt.Sprintf("row %d has %d blocks, expected %d", row, len(items), level.Width))
		}

		for _, item := range items {
			b, ok := level.ParseLBL(item)
			if !ok {
				return nil, decodeError("row %d: unknown block %q", row, item)
			}
			cells = append(cells, b)
		}
		row++
	}

	g := level.NewGrid()
	if err := g.Replace(cells); err != nil {
		return nil, err
	}
	g.SetNumber(number)
	return g, nil
}

func parseAS3Level(expr string) (level.LevelNumber, error) {
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, `"`) {
		s, err := strconv.Unquote(expr)
		if err != nil {
			return level.LevelNumber{}, decodeError("bad level literal %s", expr)
		}
		return level.TextLevel(s), nil
	}
	return level.ParseLevelNumber(expr), nil
}

// splitAS3Items делит тело массива по запятым, учитывая строки в кавычках
func splitAS3Items(body string) ([]string, error) {
	var items []string
	i := 0
	for i < len(body) {
		for i < len(body) && (body[i] == ' ' || body[i] == '\t') {
			i++
		}
		if i >= len(body) {
			break
		}

		var item string
		if body[i] == '"' {
			end := i + 1
			for end < len(body) && body[end] != '"' {
				if body[end] == '\\' {
					end++
				}
				end++
			}
			if end >= len(body) {
				return nil, decodeError("unterminated string")
			}
			s, err := strconv.Unquote(body[i : end+1])
			if err != nil {
				return nil, decodeError("bad string literal %s", body[i:end+1])
			}
			item = s
			i = end + 1
			for i < len(body) && body[i] != ',' {
				if body[i] != ' ' && body[i] != '\t' {
					return nil, decodeError("unexpected %q after string", body[i])
				}
				i++
			}
		} else {
			end := strings.IndexByte(body[i:], ',')
			if end < 0 {
				end = len(body) - i
			}
			item = strings.TrimSpace(body[i : i+end])
			i += end
		}

		items = append(items, item)
		if i < len(body) && body[i] == ',' {
			i++
		}
	}
	return items, nil
}
