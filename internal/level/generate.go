package level

import (
	"github.com/aquilax/go-perlin"
)

// Параметры шума для генератора черновых уровней
const (
	noiseAlpha   = 2.0 // Сглаживание шума
	noiseBeta    = 2.0 // Частота шума
	noiseOctaves = 3   // Количество октав
	noiseScale   = 0.15
)

// Generate заполняет сетку черновым уровнем по шуму Перлина:
// рамка из блоков, рельеф снизу, скелет слева и выход справа.
// Один и тот же seed всегда даёт одинаковый уровень.
func Generate(g *Grid, seed int64) {
	p := perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctaves, seed)
	g.Fill(Empty)

	heights := make([]int, Width)
	for x := 0; x < Width; x++ {
		// Шум в [-1,1] переводим в [0,1]
		n := (p.Noise1D(float64(x)*noiseScale) + 1.0) / 2.0
		h := 2 + int(n*float64(Height/2))
		if h > Height-4 {
			h = Height - 4
		}
		heights[x] = h
	}

	for i := 0; i < Size; i++ {
		x, y := Coords(i)
		switch {
		case x == 0 || x == Width-1 || y == 0 || y == Height-1:
			g.cells[i] = NewBlock(KindBlock)
		case y >= Height-1-heights[x]:
			g.cells[i] = NewBlock(KindBlock)
		case y == Height-2-heights[x] && x%7 == 3:
			// Редкие факелы на поверхности
			g.cells[i] = NewBlock(KindTorch)
		}
	}

	// Точки входа и выхода ставим над рельефом у краёв
	spawnX, exitX := 1, Width-2
	g.cells[(Height-2-heights[spawnX])*Width+spawnX] = NewBlock(KindSkeleton)
	g.cells[(Height-2-heights[exitX])*Width+exitX] = NewBlock(KindExit)
}
