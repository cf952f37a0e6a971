package level

import (
	"strconv"
)

// LevelNumber номер уровня: число или произвольная строка (как в AS3-экспорте).
// Нулевое значение означает "номер не задан".
type LevelNumber struct {
	Num    uint64
	Str    string
	IsText bool
	Set    bool
}

// NumberLevel создаёт числовой номер уровня
func NumberLevel(n uint64) LevelNumber {
	return LevelNumber{Num: n, Set: true}
}

// TextLevel создаёт строковый номер уровня
func TextLevel(s string) LevelNumber {
	return LevelNumber{Str: s, IsText: true, Set: true}
}

// ParseLevelNumber разбирает номер уровня: целое число даёт числовой номер,
// всё остальное: строковый. Пустая строка: номер не задан.
func ParseLevelNumber(s string) LevelNumber {
	if s == "" {
		return LevelNumber{}
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return NumberLevel(n)
	}
	return TextLevel(s)
}

// String возвращает номер в текстовом виде ("" если не задан)
func (n LevelNumber) String() string {
	if !n.Set {
		return ""
	}
	if n.IsText {
		return n.Str
	}
	return strconv.FormatUint(n.Num, 10)
}
