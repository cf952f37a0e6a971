package level

// ErrorKind классифицирует ошибки ядра уровня
type ErrorKind int

const (
	// KindInvalidIndex индекс клетки вне [0, Size)
	KindInvalidIndex ErrorKind = iota + 1
	// KindInvalidLevelData импорт неверной длины или структуры
	KindInvalidLevelData
	// KindDecode бинарные/текстовые данные уровня не разбираются
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidIndex:
		return "invalid index"
	case KindInvalidLevelData:
		return "invalid level data"
	case KindDecode:
		return "decode error"
	default:
		return "unknown error"
	}
}

// Error представляет ошибку ядра уровня.
// errors.Is сравнивает ошибки по Kind, поэтому
// errors.Is(err, ErrDecode) верно для любой ошибки декодирования.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is сопоставляет ошибки по виду
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// NewError создаёт ошибку указанного вида
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError создаёт ошибку указанного вида с причиной
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Ошибки ядра
var (
	ErrInvalidIndex     = NewError(KindInvalidIndex, "")
	ErrInvalidLevelData = NewError(KindInvalidLevelData, "")
	ErrDecode           = NewError(KindDecode, "")
)
