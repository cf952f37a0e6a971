package render

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/annel0/sks-levelbuilder/internal/level"
)

// Отступ рамки блока внутри клетки
const blockInset = 2

var (
	backgroundOnce sync.Once
	background     *image.RGBA
)

// PaletteRasterizer эталонный растеризатор: брусчатый фон и цветные
// клетки по типу блока. Неизвестные блоки рисуются пурпурной заглушкой,
// тёмный режим затемняет итоговое изображение.
type PaletteRasterizer struct {
	// DarkFactor множитель яркости в тёмном режиме (0..1)
	DarkFactor float64
}

// NewPaletteRasterizer создаёт растеризатор с настройками по умолчанию
func NewPaletteRasterizer() *PaletteRasterizer {
	return &PaletteRasterizer{DarkFactor: 0.45}
}

// Render рисует уровень в новое изображение 1920x1080
func (p *PaletteRasterizer) Render(g *level.Grid) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, ImageWidth, ImageHeight))
	draw.Draw(img, img.Bounds(), cobbleBackground(), image.Point{}, draw.Src)

	for i, b := range g.Cells() {
		if b.IsEmpty() {
			continue
		}
		x, y := level.Coords(i)
		drawBlock(img, image.Rect(x*CellSize, y*CellSize, (x+1)*CellSize, (y+1)*CellSize), b)
	}

	if g.Dark() {
		darken(img, p.DarkFactor)
	}
	return img, nil
}

// ApplyDark возвращает затемнённую копию src
func (p *PaletteRasterizer) ApplyDark(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Rect)
	draw.Draw(dst, dst.Rect, src, src.Rect.Min, draw.Src)
	darken(dst, p.DarkFactor)
	return dst
}

// CellRect прямоугольник клетки в пикселях
func CellRect(index int) image.Rectangle {
	x, y := level.Coords(index)
	return image.Rect(x*CellSize, y*CellSize, (x+1)*CellSize, (y+1)*CellSize)
}

func cobbleBackground() *image.RGBA {
	backgroundOnce.Do(func() {
		background = image.NewRGBA(image.Rect(0, 0, ImageWidth, ImageHeight))
		base := color.RGBA{R: 86, G: 80, B: 74, A: 255}
		mortar := color.RGBA{R: 58, G: 54, B: 50, A: 255}
		draw.Draw(background, background.Bounds(), image.NewUniform(base), image.Point{}, draw.Src)

		// Кладка со смещением каждого второго ряда на полкамня
		const stoneW, stoneH = 40, 20
		for y := 0; y < ImageHeight; y++ {
			row := y / stoneH
			offset := (row % 2) * stoneW / 2
			for x := 0; x < ImageWidth; x++ {
				if y%stoneH == 0 || (x+offset)%stoneW == 0 {
					background.SetRGBA(x, y, mortar)
				}
			}
		}
	})
	return background
}

func kindColor(k level.Kind) color.RGBA {
	switch k {
	case level.KindBlock:
		return color.RGBA{R: 120, G: 120, B: 130, A: 255}
	case level.KindOneWayUp, level.KindOneWayRight, level.KindOneWayDown, level.KindOneWayLeft:
		return color.RGBA{R: 200, G: 170, B: 60, A: 255}
	case level.KindExit:
		return color.RGBA{R: 60, G: 200, B: 90, A: 255}
	case level.KindSecretExit:
		return color.RGBA{R: 40, G: 130, B: 70, A: 255}
	case level.KindKey:
		return color.RGBA{R: 240, G: 220, B: 40, A: 255}
	case level.KindLock:
		return color.RGBA{R: 150, G: 100, B: 40, A: 255}
	case level.KindTorch:
		return color.RGBA{R: 255, G: 140, B: 30, A: 255}
	case level.KindScaffold:
		return color.RGBA{R: 140, G: 95, B: 55, A: 255}
	case level.KindSkeleton:
		return color.RGBA{R: 235, G: 235, B: 225, A: 255}
	case level.KindPowerUpBurrow:
		return color.RGBA{R: 90, G: 60, B: 200, A: 255}
	case level.KindPowerUpRecall:
		return color.RGBA{R: 60, G: 160, B: 230, A: 255}
	case level.KindWire:
		return color.RGBA{R: 200, G: 40, B: 40, A: 255}
	case level.KindPipeIn, level.KindPipeOut, level.KindPipePhase:
		return color.RGBA{R: 70, G: 150, B: 90, A: 255}
	case level.KindNote:
		return color.RGBA{R: 250, G: 250, B: 250, A: 255}
	default:
		return color.RGBA{R: 255, G: 0, B: 255, A: 255}
	}
}

func drawBlock(img *image.RGBA, cell image.Rectangle, b level.Block) {
	inner := cell.Inset(blockInset)
	fill := image.NewUniform(kindColor(b.Kind))

	switch b.Kind {
	case level.KindOneWayUp:
		draw.Draw(img, image.Rect(inner.Min.X, inner.Min.Y, inner.Max.X, inner.Min.Y+CellSize/6), fill, image.Point{}, draw.Src)
	case level.KindOneWayDown:
		draw.Draw(img, image.Rect(inner.Min.X, inner.Max.Y-CellSize/6, inner.Max.X, inner.Max.Y), fill, image.Point{}, draw.Src)
	case level.KindOneWayLeft:
		draw.Draw(img, image.Rect(inner.Min.X, inner.Min.Y, inner.Min.X+CellSize/6, inner.Max.Y), fill, image.Point{}, draw.Src)
	case level.KindOneWayRight:
		draw.Draw(img, image.Rect(inner.Max.X-CellSize/6, inner.Min.Y, inner.Max.X, inner.Max.Y), fill, image.Point{}, draw.Src)
	case level.KindNote:
		// Нота: светлый квадрат с тёмной "головкой" в центре
		draw.Draw(img, inner, fill, image.Point{}, draw.Src)
		head := image.Rect(0, 0, CellSize/3, CellSize/3).Add(inner.Min).Add(image.Pt(CellSize/3, CellSize/3))
		draw.Draw(img, head, image.NewUniform(color.RGBA{A: 255}), image.Point{}, draw.Src)
	case level.KindUnknown:
		// Заглушка для отсутствующего ассета: пурпурно-чёрная шахматка
		black := color.RGBA{A: 255}
		magenta := kindColor(level.KindUnknown)
		half := CellSize / 2
		for y := inner.Min.Y; y < inner.Max.Y; y++ {
			for x := inner.Min.X; x < inner.Max.X; x++ {
				if ((x-cell.Min.X)/half+(y-cell.Min.Y)/half)%2 == 0 {
					img.SetRGBA(x, y, magenta)
				} else {
					img.SetRGBA(x, y, black)
				}
			}
		}
	default:
		draw.Draw(img, inner, fill, image.Point{}, draw.Src)
	}
}

func darken(img *image.RGBA, factor float64) {
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}
	for i := 0; i+3 < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(float64(img.Pix[i]) * factor)
		img.Pix[i+1] = uint8(float64(img.Pix[i+1]) * factor)
		img.Pix[i+2] = uint8(float64(img.Pix[i+2]) * factor)
	}
}
