package main

import (
	"flag"
	"fmt"
	"image/png"
	"io"
	"log"
	"os"
	"sort"

	"github.com/annel0/sks-levelbuilder/internal/builder"
	"github.com/annel0/sks-levelbuilder/internal/codec"
	"github.com/annel0/sks-levelbuilder/internal/level"
)

func main() {
	var (
		command = flag.String("cmd", "info", "Command: info, convert, render, generate")
		in      = flag.String("in", "-", "Input level file (- for stdin)")
		out     = flag.String("out", "-", "Output file (- for stdout)")
		format  = flag.String("format", "bin", "Output format: lbl, as3, bin, packed")
		dark    = flag.Bool("dark", false, "Dark mode for render/generate")
		number  = flag.String("level", "", "Level number to set on output")
		seed    = flag.Int64("seed", 0, "Seed for generate")
	)
	flag.Parse()

	var err error
	switch *command {
	case "info":
		err = showInfo(*in)
	case "convert":
		err = convert(*in, *out, *format, *number)
	case "render":
		err = renderPNG(*in, *out, *dark)
	case "generate":
		err = generate(*out, *format, *number, *seed, *dark)
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: info, convert, render, generate")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("❌ %s failed: %v", *command, err)
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(path string, data []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// loadBuilder читает файл в новый редактор
func loadBuilder(path string) (*builder.LevelBuilder, codec.FileFormat, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, "", err
	}
	lb := builder.New(builder.DefaultOptions())
	f, err := lb.Import(data)
	if err != nil {
		return nil, "", err
	}
	return lb, f, nil
}

// showInfo выводит формат и состав уровня
func showInfo(path string) error {
	lb, f, err := loadBuilder(path)
	if err != nil {
		return err
	}
	g := lb.Snapshot()

	fmt.Printf("📄 Format: %s\n", f)
	fmt.Printf("🔢 Level:  %s\n", orDash(g.Number().String()))
	fmt.Printf("🌙 Dark:   %v\n", g.Dark())
	fmt.Printf("🧱 Blocks: %d / %d\n", g.CountNonEmpty(), level.Size)

	counts := make(map[string]int)
	for _, b := range g.Cells() {
		if !b.IsEmpty() {
			counts[b.Kind.String()]++
		}
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Printf("   %-12s %d\n", k, counts[k])
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// convert перекодирует уровень в другой формат
func convert(in, out, format, number string) error {
	f, err := codec.ParseFormat(format)
	if err != nil {
		return err
	}
	lb, _, err := loadBuilder(in)
	if err != nil {
		return err
	}
	if number != "" {
		lb.SetLevel(level.ParseLevelNumber(number))
	}
	data, err := lb.Export(f)
	if err != nil {
		return err
	}
	return writeOutput(out, data)
}

// renderPNG рисует уровень в PNG 1920x1080
func renderPNG(in, out string, dark bool) error {
	lb, f, err := loadBuilder(in)
	if err != nil {
		return err
	}
	if dark {
		lb.SetDark(true)
	} else if !f.CarriesDark() {
		lb.SetDark(false)
	}
	lb.DisableGrid()

	img, err := lb.GetImage()
	if err != nil {
		return err
	}
	if out == "-" {
		return png.Encode(os.Stdout, img)
	}
	file, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// generate создаёт уровень из шума Перлина
func generate(out, format, number string, seed int64, dark bool) error {
	f, err := codec.ParseFormat(format)
	if err != nil {
		return err
	}
	lb := builder.New(builder.DefaultOptions())
	lb.Generate(seed)
	lb.SetDark(dark)
	if number != "" {
		lb.SetLevel(level.ParseLevelNumber(number))
	}
	data, err := lb.Export(f)
	if err != nil {
		return err
	}
	return writeOutput(out, data)
}
