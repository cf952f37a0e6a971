package level

import (
	"strconv"
	"strings"
)

// NotePrefix префикс параметрических блоков-нот
const NotePrefix = "Note:"

// EmptyID идентификатор пустой клетки
const EmptyID = "null"

// Block значение одной клетки уровня.
// Text используется только KindNote (текст ноты) и KindUnknown
// (исходный нераспознанный идентификатор).
type Block struct {
	Kind Kind
	Text string
}

// Empty пустая клетка
var Empty = Block{Kind: KindEmpty}

// NewBlock создаёт блок каталога без полезной нагрузки
func NewBlock(kind Kind) Block {
	return Block{Kind: kind}
}

// NewNote создаёт блок-ноту с текстом
func NewNote(text string) Block {
	return Block{Kind: KindNote, Text: text}
}

// Normalize приводит блок к каноническому виду: тег вне каталога
// становится KindUnknown, у блоков каталога без полезной нагрузки
// Text очищается.
func (b Block) Normalize() Block {
	switch {
	case b.Kind == KindNote || b.Kind == KindUnknown:
		return b
	case IsValidKind(b.Kind):
		return Block{Kind: b.Kind}
	}
	if b.Text == "" {
		b.Text = "kind" + strconv.Itoa(int(b.Kind))
	}
	return Block{Kind: KindUnknown, Text: b.Text}
}

// ParseBlock преобразует идентификатор редактора ("b0", "Note:C4", "null")
// в блок. Никогда не возвращает ошибку: неизвестные идентификаторы
// сохраняются как KindUnknown, их обработка: забота растеризатора.
func ParseBlock(id string) Block {
	if strings.HasPrefix(id, NotePrefix) {
		return NewNote(strings.TrimPrefix(id, NotePrefix))
	}
	if info, ok := byBuilderID[id]; ok {
		return Block{Kind: info.Kind}
	}
	return Block{Kind: KindUnknown, Text: id}
}

// ParseLBL разбирает код блока формата LBL ("B0", "00", "Note:C4").
// В отличие от ParseBlock неизвестный код: ошибка.
func ParseLBL(code string) (Block, bool) {
	if strings.HasPrefix(code, NotePrefix) {
		return NewNote(strings.TrimPrefix(code, NotePrefix)), true
	}
	if info, ok := byLBL[code]; ok {
		return Block{Kind: info.Kind}, true
	}
	return Block{}, false
}

// String возвращает идентификатор редактора
func (b Block) String() string {
	switch b.Kind {
	case KindNote:
		return NotePrefix + b.Text
	case KindUnknown:
		return b.Text
	}
	if info, ok := Lookup(b.Kind); ok {
		return info.BuilderID
	}
	return EmptyID
}

// LBL возвращает код блока в формате LBL. Для блоков вне каталога ok == false.
func (b Block) LBL() (string, bool) {
	switch b.Kind {
	case KindNote:
		return NotePrefix + b.Text, true
	case KindUnknown:
		return "", false
	}
	info, ok := Lookup(b.Kind)
	if !ok {
		return "", false
	}
	return info.LBL, true
}

// AssetName имя ассета для отрисовки: все ноты используют один ассет "note"
func (b Block) AssetName() string {
	if b.Kind == KindNote {
		return "note"
	}
	return b.String()
}

// IsEmpty true для пустой клетки
func (b Block) IsEmpty() bool {
	return b.Kind == KindEmpty
}

// InCatalog true для блоков, известных каталогу (включая ноты)
func (b Block) InCatalog() bool {
	if b.Kind == KindNote {
		return true
	}
	_, ok := Lookup(b.Kind)
	return ok
}
