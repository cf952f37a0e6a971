package codec

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/annel0/sks-levelbuilder/internal/level"
)

// FileFormat формат экспорта/импорта уровня
type FileFormat string

const (
	FormatLBL    FileFormat = "lbl"    // текстовый LBL
	FormatAS3    FileFormat = "as3"    // исходник AS3
	FormatBinary FileFormat = "bin"    // бинарный LBL
	FormatPacked FileFormat = "packed" // бинарный LBL + zstd
)

// ErrUnknownFormat имя формата не из Formats
var ErrUnknownFormat = errors.New("unknown format")

// Formats все поддерживаемые форматы
var Formats = []FileFormat{FormatLBL, FormatAS3, FormatBinary, FormatPacked}

// ParseFormat разбирает имя формата
func ParseFormat(name string) (FileFormat, error) {
	f := FileFormat(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownFormat, name)
}

// CarriesDark true для форматов, переносящих флаг тёмного режима
func (f FileFormat) CarriesDark() bool {
	return f == FormatBinary || f == FormatPacked
}

// CarriesNumber true, если формат хранит номер уровня
func (f FileFormat) CarriesNumber() bool {
	return f != FormatLBL
}

// ContentType MIME-тип для отдачи по HTTP
func (f FileFormat) ContentType() string {
	switch f {
	case FormatBinary:
		return "application/x-lbl"
	case FormatPacked:
		return "application/zstd"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Encode кодирует сетку в указанный формат
func Encode(g *level.Grid, f FileFormat) ([]byte, error) {
	switch f {
	case FormatLBL:
		s, err := EncodeLBLText(g)
		return []byte(s), err
	case FormatAS3:
		s, err := EncodeAS3(g)
		return []byte(s), err
	case FormatBinary:
		return EncodeLBL(g)
	case FormatPacked:
		return Pack(g)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, f)
	}
}

// GuessFormat определяет формат данных по первым байтам / первой строке
func GuessFormat(data []byte) (FileFormat, bool) {
	if bytes.HasPrefix(data, zstdMagic) {
		return FormatPacked, true
	}
	if bytes.HasPrefix(data, []byte(lblMagic)) {
		return FormatBinary, true
	}

	first := string(data)
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	first = strings.TrimSuffix(first, "\r")

	if _, ok := level.ParseLBL(first); ok {
		return FormatLBL, true
	}
	if strings.HasPrefix(strings.TrimSpace(first), "lvlArray") {
		return FormatAS3, true
	}
	return "", false
}

// Decode определяет формат и разбирает данные.
// Нераспознанный формат даёт ErrInvalidLevelData.
func Decode(data []byte) (*level.Grid, FileFormat, error) {
	f, ok := GuessFormat(data)
	if !ok {
		return nil, "", level.NewError(level.KindInvalidLevelData, "unrecognized level format")
	}

	var (
		g   *level.Grid
		err error
	)
	switch f {
	case FormatPacked:
		g, err = Unpack(data)
	case FormatBinary:
		g, err = DecodeLBL(data)
	case FormatLBL:
		g, err = DecodeLBLText(string(data))
	case FormatAS3:
		g, err = DecodeAS3(string(data))
	}
	if err != nil {
		return nil, f, err
	}
	return g, f, nil
}
