package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" warning "))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("что-то"), "неизвестный уровень должен давать INFO")
}

func TestNewLoggerWritesFile(t *testing.T) {
	prev := LogDir
	LogDir = t.TempDir()
	defer func() { LogDir = prev }()

	l, err := NewLogger("test")
	require.NoError(t, err)
	l.SetLevels(ERROR, DEBUG)

	l.Debug("hello %d", 42)
	l.Trace("не должно попасть в файл")
	require.NoError(t, l.Close())

	files, err := filepath.Glob(filepath.Join(LogDir, "test_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DEBUG] [test] hello 42")
	assert.NotContains(t, string(data), "не должно")
}

func TestHexDumpLimits(t *testing.T) {
	assert.Equal(t, "No data", HexDump(nil))
	dump := HexDump(make([]byte, 1024))
	// 256 байт = 16 строк по 16 байт
	assert.Equal(t, 16, countLines(dump))
}

func countLines(s string) int {
	n := 0
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}

func TestComponentLoggersConsoleOnlyByDefault(t *testing.T) {
	prev := LogDir
	LogDir = t.TempDir()
	defer func() { LogDir = prev }()
	defer CloseAll()

	l := GetComponentLogger("console-only")
	assert.Same(t, l, GetComponentLogger("console-only"))
	l.Info("hello")

	entries, err := os.ReadDir(LogDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Contains(t, Components(), "console-only")
}

func TestComponentLoggersWithFileOutput(t *testing.T) {
	prev := LogDir
	LogDir = t.TempDir()
	defer func() { LogDir = prev }()
	EnableFileOutput(true)
	defer EnableFileOutput(false)

	GetComponentLogger("filed").Debug("to file only")
	require.NoError(t, CloseAll())

	files, err := filepath.Glob(filepath.Join(LogDir, "filed_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DEBUG] [filed] to file only")
	assert.Empty(t, Components())
}
