package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/annel0/sks-levelbuilder/internal/level"
)

// Бинарный LBL, версия 1:
//
//	"LBL" | version | flags | width | height
//	[номер уровня: 0 + uvarint | 1 + uvarint len + bytes]
//	серии: uvarint длина, тег типа, [для ноты: uvarint len + байты текста]
//
// Серии покрывают ровно level.Size клеток.
const (
	lblMagic   = "LBL"
	lblVersion = 1

	flagDark   = 1 << 0
	flagNumber = 1 << 1
	knownFlags = flagDark | flagNumber

	numberKindNum  = 0
	numberKindText = 1
)

// ErrOutsideCatalog блок не входит в каталог и не может быть закодирован
var ErrOutsideCatalog = level.NewError(level.KindDecode, "block outside catalog")

// EncodeLBL кодирует сетку в бинарный LBL.
// Ошибка возможна только для клеток вне каталога (KindUnknown);
// текст нот и номера пишется как есть, без ограничений длины.
func EncodeLBL(g *level.Grid) ([]byte, error) {
	var flags byte
	if g.Dark() {
		flags |= flagDark
	}
	number := g.Number()
	if number.Set {
		flags |= flagNumber
	}

	buf := make([]byte, 0, 64)
	buf = append(buf, lblMagic...)
	buf = append(buf, lblVersion, flags, level.Width, level.Height)

	if number.Set {
		if number.IsText {
			buf = append(buf, numberKindText)
			buf = appendString(buf, number.Str)
		} else {
			buf = append(buf, numberKindNum)
			buf = binary.AppendUvarint(buf, number.Num)
		}
	}

	cells := g.Cells()
	for i := 0; i < len(cells); {
		j := i + 1
		for j < len(cells) && cells[j] == cells[i] {
			j++
		}

		buf = binary.AppendUvarint(buf, uint64(j-i))
		var err error
		buf, err = appendCell(buf, cells[i])
		if err != nil {
			return nil, fmt.Errorf("cell %d (%s): %w", i, cells[i].Kind, err)
		}
		i = j
	}

	return buf, nil
}

func appendCell(buf []byte, b level.Block) ([]byte, error) {
	if !b.InCatalog() {
		return nil, ErrOutsideCatalog
	}
	buf = append(buf, byte(b.Kind))
	if b.Kind == level.KindNote {
		buf = appendString(buf, b.Text)
	}
	return buf, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// DecodeLBL разбирает бинарный LBL. Любое нарушение формата даёт
// ошибку вида level.KindDecode; частичного результата не бывает.
func DecodeLBL(data []byte) (*level.Grid, error) {
	r := &lblReader{data: data}

	magic, err := r.next(len(lblMagic))
	if err != nil {
		return nil, err
	}
	if string(magic) != lblMagic {
		return nil, decodeError("bad magic %q", magic)
	}

	header, err := r.next(4)
	if err != nil {
		return nil, err
	}
	version, flags, width, height := header[0], header[1], header[2], header[3]
	if version != lblVersion {
		return nil, decodeError("unsupported version %d", version)
	}
	if flags&^knownFlags != 0 {
		return nil, decodeError("unknown flags %#x", flags)
	}
	if int(width) != level.Width || int(height) != level.Height {
		return nil, decodeError("invalid dimensions %dx%d", width, height)
	}

	g := level.NewGrid()
	g.SetDark(flags&flagDark != 0)

	if flags&flagNumber != 0 {
		number, err := r.number()
		if err != nil {
			return nil, err
		}
		g.SetNumber(number)
	}

	cells := make([]level.Block, 0, level.Size)
	for len(cells) < level.Size {
		run, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		if run == 0 || run > uint64(level.Size-len(cells)) {
			return nil, decodeError("invalid run length %d at cell %d", run, len(cells))
		}

		b, err := r.cell()
		if err != nil {
			return nil, err
		}
		for k := uint64(0); k < run; k++ {
			cells = append(cells, b)
		}
	}

	if r.pos != len(r.data) {
		return nil, decodeError("%d trailing bytes", len(r.data)-r.pos)
	}

	if err := g.Replace(cells); err != nil {
		return nil, err
	}
	return g, nil
}

func decodeError(format string, args ...interface{}) error {
	return level.NewError(level.KindDecode, fmt.Sprintf(format, args...))
}

// lblReader последовательно читает буфер, отслеживая смещение для ошибок
type lblReader struct {
	data []byte
	pos  int
}

func (r *lblReader) next(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, decodeError("truncated at offset %d", r.pos)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *lblReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.pos:])
	if n == 0 {
		return 0, decodeError("truncated at offset %d", r.pos)
	}
	if n < 0 {
		return 0, decodeError("varint overflow at offset %d", r.pos)
	}
	r.pos += n
	return v, nil
}

func (r *lblReader) text() (string, error) {
	n, err := r.uvarint()
	if err != nil {
		return "", err
	}
	// длина ограничена только остатком буфера
	if n > uint64(len(r.data)-r.pos) {
		return "", decodeError("text of %d bytes truncated at offset %d", n, r.pos)
	}
	b, err := r.next(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *lblReader) number() (level.LevelNumber, error) {
	kind, err := r.next(1)
	if err != nil {
		return level.LevelNumber{}, err
	}
	switch kind[0] {
	case numberKindNum:
		n, err := r.uvarint()
		if err != nil {
			return level.LevelNumber{}, err
		}
		return level.NumberLevel(n), nil
	case numberKindText:
		s, err := r.text()
		if err != nil {
			return level.LevelNumber{}, err
		}
		return level.TextLevel(s), nil
	default:
		return level.LevelNumber{}, decodeError("unknown level number kind %d", kind[0])
	}
}

func (r *lblReader) cell() (level.Block, error) {
	tag, err := r.next(1)
	if err != nil {
		return level.Block{}, err
	}

	kind := level.Kind(tag[0])
	if !level.IsValidKind(kind) {
		return level.Block{}, decodeError("unknown block tag %d at offset %d", tag[0], r.pos-1)
	}
	if kind != level.KindNote {
		return level.NewBlock(kind), nil
	}

	text, err := r.text()
	if err != nil {
		return level.Block{}, err
	}
	return level.NewNote(text), nil
}
