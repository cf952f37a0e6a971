package level

// Kind тип блока из закрытого каталога
type Kind uint8

// Константы типов блоков. Значения используются как теги в бинарном
// формате LBL, поэтому их порядок менять нельзя.
const (
	KindEmpty Kind = iota // 0
	KindBlock             // 1
	KindOneWayUp
	KindOneWayRight
	KindOneWayDown
	KindOneWayLeft
	KindExit
	KindSecretExit
	KindKey
	KindLock
	KindTorch
	KindScaffold
	KindSkeleton
	KindPowerUpBurrow
	KindPowerUpRecall
	KindWire
	KindPipeIn
	KindPipeOut
	KindPipePhase

	// Параметрический блок: текст ноты в Block.Text
	KindNote Kind = 100

	// Нераспознанный идентификатор редактора, в каталог не входит
	KindUnknown Kind = 255
)

// BlockInfo описание типа блока в каталоге
type BlockInfo struct {
	Kind      Kind
	Name      string
	BuilderID string // идентификатор редактора ("b0")
	LBL       string // код в формате LBL ("B0")
}

var catalog = []BlockInfo{
	{KindEmpty, "Empty", EmptyID, "00"},
	{KindBlock, "Block", "b0", "B0"},
	{KindOneWayUp, "OneWayWallUp", "a0", "A0"},
	{KindOneWayRight, "OneWayWallRight", "a1", "A1"},
	{KindOneWayDown, "OneWayWallDown", "a2", "A2"},
	{KindOneWayLeft, "OneWayWallLeft", "a3", "A3"},
	{KindExit, "Exit", "e0", "E0"},
	{KindSecretExit, "SecretExit", "e1", "E1"},
	{KindKey, "Key", "k0", "K0"},
	{KindLock, "Lock", "l0", "L0"},
	{KindTorch, "Torch", "t0", "T0"},
	{KindScaffold, "Scaffold", "s0", "S0"},
	{KindSkeleton, "Skeleton", "x0", "X0"},
	{KindPowerUpBurrow, "PowerUpBurrow", "p0", "P0"},
	{KindPowerUpRecall, "PowerUpRecall", "p1", "P1"},
	{KindWire, "Wire", "w0", "W0"},
	{KindPipeIn, "PipeIn", "i0", "I0"},
	{KindPipeOut, "PipeOut", "o0", "O0"},
	{KindPipePhase, "PipePhase", "h0", "H0"},
}

var (
	byKind      = make(map[Kind]BlockInfo, len(catalog))
	byBuilderID = make(map[string]BlockInfo, len(catalog))
	byLBL       = make(map[string]BlockInfo, len(catalog))
)

func init() {
	for _, info := range catalog {
		byKind[info.Kind] = info
		byBuilderID[info.BuilderID] = info
		byLBL[info.LBL] = info
	}
}

// Lookup возвращает описание типа блока без полезной нагрузки.
// Для KindNote и KindUnknown ok == false.
func Lookup(kind Kind) (BlockInfo, bool) {
	info, ok := byKind[kind]
	return info, ok
}

// IsValidKind проверяет, является ли тег допустимым типом блока
func IsValidKind(kind Kind) bool {
	if kind == KindNote {
		return true
	}
	_, ok := byKind[kind]
	return ok
}

// Catalog возвращает копию каталога в порядке тегов
func Catalog() []BlockInfo {
	out := make([]BlockInfo, len(catalog))
	copy(out, catalog)
	return out
}

// String возвращает имя типа блока
func (k Kind) String() string {
	switch k {
	case KindNote:
		return "Note"
	case KindUnknown:
		return "Unknown"
	}
	if info, ok := byKind[k]; ok {
		return info.Name
	}
	return "Invalid"
}
