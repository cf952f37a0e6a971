package api

import (
	"bytes"
	"image/png"
	"io"
	"net/http"
	"strconv"

	"github.com/annel0/sks-levelbuilder/internal/codec"
	"github.com/annel0/sks-levelbuilder/internal/eventbus"
	"github.com/annel0/sks-levelbuilder/internal/level"
	"github.com/annel0/sks-levelbuilder/internal/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// LevelView состояние сессии для клиента
type LevelView struct {
	SessionID  string   `json:"session_id"`
	Blocks     []string `json:"blocks"`
	Dark       bool     `json:"dark"`
	Level      string   `json:"level,omitempty"`
	Grid       bool     `json:"grid"`
	Dirty      bool     `json:"dirty"`
	ImageStale bool     `json:"image_stale"`
	Renders    uint64   `json:"renders"`
}

func viewOf(s *Session) LevelView {
	b := s.Builder
	return LevelView{
		SessionID:  s.ID,
		Blocks:     b.LevelData(),
		Dark:       b.Dark(),
		Level:      b.Level().String(),
		Grid:       b.Grid(),
		Dirty:      b.IsDirty(),
		ImageStale: b.ImageStale(),
		Renders:    b.Renders(),
	}
}

// CatalogEntry элемент каталога блоков
type CatalogEntry struct {
	ID   string `json:"id"`
	LBL  string `json:"lbl"`
	Name string `json:"name"`
}

func (rs *RestServer) handleCatalog(c *gin.Context) {
	infos := level.Catalog()
	entries := make([]CatalogEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, CatalogEntry{ID: info.BuilderID, LBL: info.LBL, Name: info.Name})
	}
	ok(c, "Каталог блоков", gin.H{
		"blocks":      entries,
		"note_prefix": level.NotePrefix,
		"width":       level.Width,
		"height":      level.Height,
	})
}

func (rs *RestServer) handleCreateSession(c *gin.Context) {
	s, err := rs.sessions.Create()
	if err != nil {
		rs.fail(c, err)
		return
	}
	rs.publish(c, eventbus.EventSessionOpened, s.ID, nil)

	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Сессия создана",
		Data:    viewOf(s),
	})
}

func (rs *RestServer) handleCloseSession(c *gin.Context) {
	s := sessionFrom(c)
	rs.sessions.Close(s.ID)
	rs.publish(c, eventbus.EventSessionClosed, s.ID, nil)
	ok(c, "Сессия закрыта", nil)
}

func (rs *RestServer) handleGetLevel(c *gin.Context) {
	ok(c, "Уровень", viewOf(sessionFrom(c)))
}

type putBlockRequest struct {
	Block string `json:"block" binding:"required"`
}

func (rs *RestServer) handlePutBlock(c *gin.Context) {
	s := sessionFrom(c)

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		rs.fail(c, badRequest("index %q is not a number", c.Param("index")))
		return
	}
	var req putBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		rs.fail(c, badRequest("%v", err))
		return
	}

	if err := s.Builder.AddBlockID(index, req.Block); err != nil {
		rs.fail(c, err)
		return
	}

	x, y := level.Coords(index)
	rs.publish(c, eventbus.EventBlockPlaced, s.ID, eventbus.BlockPlaced{Index: index, X: x, Y: y, Block: req.Block})
	ok(c, "Блок установлен", gin.H{"index": index, "x": x, "y": y, "block": req.Block})
}

func (rs *RestServer) handlePutPatch(c *gin.Context) {
	s := sessionFrom(c)

	var patch []string
	if err := c.ShouldBindJSON(&patch); err != nil {
		rs.fail(c, badRequest("%v", err))
		return
	}
	if err := s.Builder.ImportPatch(patch); err != nil {
		rs.fail(c, err)
		return
	}

	rs.publish(c, eventbus.EventLevelImported, s.ID, eventbus.LevelImported{Format: "patch", Blocks: countBlocks(patch)})
	ok(c, "Уровень заменён", viewOf(s))
}

func countBlocks(patch []string) int {
	n := 0
	for _, id := range patch {
		if id != level.EmptyID {
			n++
		}
	}
	return n
}

type toggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (rs *RestServer) bindToggle(c *gin.Context) (bool, bool) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		rs.fail(c, badRequest("%v", err))
		return false, false
	}
	return *req.Enabled, true
}

func (rs *RestServer) handleSetDark(c *gin.Context) {
	s := sessionFrom(c)
	enabled, valid := rs.bindToggle(c)
	if !valid {
		return
	}
	s.Builder.SetDark(enabled)
	ok(c, "Тёмный режим", viewOf(s))
}

func (rs *RestServer) handleSetGrid(c *gin.Context) {
	s := sessionFrom(c)
	enabled, valid := rs.bindToggle(c)
	if !valid {
		return
	}
	if enabled {
		s.Builder.EnableGrid()
	} else {
		s.Builder.DisableGrid()
	}
	ok(c, "Сетка", viewOf(s))
}

type numberRequest struct {
	Level string `json:"level"`
}

func (rs *RestServer) handleSetNumber(c *gin.Context) {
	s := sessionFrom(c)

	var req numberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		rs.fail(c, badRequest("%v", err))
		return
	}
	s.Builder.SetLevel(level.ParseLevelNumber(req.Level))
	ok(c, "Номер уровня", viewOf(s))
}

// handleImage отдаёт PNG. ?draw=true снимает флаг перерисовки.
func (rs *RestServer) handleImage(c *gin.Context) {
	s := sessionFrom(c)

	_, span := observability.Tracer().Start(c.Request.Context(), "level.image")
	defer span.End()

	getImage := s.Builder.GetImage
	if c.Query("draw") == "true" {
		getImage = s.Builder.DrawImage
	}
	img, err := getImage()
	if err != nil {
		span.RecordError(err)
		rs.fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		rs.fail(c, err)
		return
	}
	span.SetAttributes(attribute.Int("png.bytes", buf.Len()))
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (rs *RestServer) handleClearDirty(c *gin.Context) {
	s := sessionFrom(c)
	s.Builder.ClearDirty()
	ok(c, "Флаг перерисовки снят", viewOf(s))
}

// handleExport ?format=lbl|as3|bin|packed (по умолчанию bin)
func (rs *RestServer) handleExport(c *gin.Context) {
	s := sessionFrom(c)

	format, err := codec.ParseFormat(c.DefaultQuery("format", string(codec.FormatBinary)))
	if err != nil {
		rs.fail(c, err)
		return
	}

	_, span := observability.Tracer().Start(c.Request.Context(), "level.export")
	defer span.End()
	span.SetAttributes(attribute.String("level.format", string(format)))

	data, err := s.Builder.Export(format)
	if err != nil {
		span.RecordError(err)
		rs.fail(c, err)
		return
	}
	c.Data(http.StatusOK, format.ContentType(), data)
}

// handleImport тело запроса: уровень в любом поддерживаемом формате
func (rs *RestServer) handleImport(c *gin.Context) {
	s := sessionFrom(c)

	data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, rs.maxUpload))
	if err != nil {
		rs.fail(c, err)
		return
	}

	_, span := observability.Tracer().Start(c.Request.Context(), "level.import")
	defer span.End()
	span.SetAttributes(attribute.Int("level.bytes", len(data)))

	format, err := s.Builder.Import(data)
	if err != nil {
		span.RecordError(err)
		rs.fail(c, err)
		return
	}
	span.SetAttributes(attribute.String("level.format", string(format)))

	rs.publish(c, eventbus.EventLevelImported, s.ID, eventbus.LevelImported{
		Format: string(format),
		Blocks: s.Builder.Snapshot().CountNonEmpty(),
	})
	ok(c, "Уровень импортирован", gin.H{"format": format, "level": viewOf(s)})
}

// handleGenerate ?seed=N (по умолчанию 0)
func (rs *RestServer) handleGenerate(c *gin.Context) {
	s := sessionFrom(c)

	seed, err := strconv.ParseInt(c.DefaultQuery("seed", "0"), 10, 64)
	if err != nil {
		rs.fail(c, badRequest("seed %q is not a number", c.Query("seed")))
		return
	}
	s.Builder.Generate(seed)
	ok(c, "Уровень сгенерирован", viewOf(s))
}

func (rs *RestServer) handleClear(c *gin.Context) {
	s := sessionFrom(c)
	s.Builder.Clear()
	ok(c, "Уровень очищен", viewOf(s))
}

func (rs *RestServer) handleSave(c *gin.Context) {
	s := sessionFrom(c)
	name := c.Param("name")

	if err := rs.repo.SaveLevel(c.Request.Context(), name, s.Builder.Snapshot()); err != nil {
		rs.fail(c, err)
		return
	}
	rs.publish(c, eventbus.EventLevelSaved, s.ID, eventbus.LevelStored{Name: name})
	ok(c, "Уровень сохранён", gin.H{"name": name})
}

func (rs *RestServer) handleLoad(c *gin.Context) {
	s := sessionFrom(c)
	name := c.Param("name")

	g, err := rs.repo.LoadLevel(c.Request.Context(), name)
	if err != nil {
		rs.fail(c, err)
		return
	}
	s.Builder.Load(g)

	rs.publish(c, eventbus.EventLevelLoaded, s.ID, eventbus.LevelStored{Name: name})
	ok(c, "Уровень загружен", viewOf(s))
}

func (rs *RestServer) handleListLevels(c *gin.Context) {
	names, err := rs.repo.ListLevels(c.Request.Context())
	if err != nil {
		rs.fail(c, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	ok(c, "Сохранённые уровни", gin.H{"levels": names, "total": len(names)})
}

func (rs *RestServer) handleDeleteLevel(c *gin.Context) {
	name := c.Param("name")
	if err := rs.repo.DeleteLevel(c.Request.Context(), name); err != nil {
		rs.fail(c, err)
		return
	}
	rs.publish(c, eventbus.EventLevelDeleted, "", eventbus.LevelStored{Name: name})
	ok(c, "Уровень удалён", gin.H{"name": name})
}
