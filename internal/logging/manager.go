package logging

import (
	"fmt"
	"sort"
	"sync"
)

// registry логгеры компонентов. Файлы создаются только после
// EnableFileOutput(true), иначе компоненты пишут в консоль.
type registry struct {
	mu      sync.Mutex
	loggers map[string]*Logger
	toFile  bool
	console LogLevel
}

var components = &registry{
	loggers: make(map[string]*Logger),
	console: INFO,
}

func (r *registry) get(component string) *Logger {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.loggers[component]; ok {
		return l
	}

	l := newConsoleLogger(component)
	if r.toFile {
		fl, err := NewLogger(component)
		if err != nil {
			l.Warn("file output disabled: %v", err)
		} else {
			l = fl
		}
	}
	l.SetLevels(r.console, DEBUG)
	r.loggers[component] = l
	return l
}

// EnableFileOutput включает запись логов компонентов в LogDir.
// Действует на логгеры, созданные после вызова.
func EnableFileOutput(enabled bool) {
	components.mu.Lock()
	components.toFile = enabled
	components.mu.Unlock()
}

// SetLevel задаёт консольный уровень логгеру по умолчанию и всем компонентам
func SetLevel(level LogLevel) {
	SetDefaultLevel(level)

	components.mu.Lock()
	defer components.mu.Unlock()
	components.console = level
	for _, l := range components.loggers {
		l.SetLevels(level, l.fileLevel())
	}
}

// Components имена созданных логгеров
func Components() []string {
	components.mu.Lock()
	defer components.mu.Unlock()

	names := make([]string, 0, len(components.loggers))
	for name := range components.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CloseAll закрывает файлы всех компонентов и забывает их
func CloseAll() error {
	components.mu.Lock()
	defer components.mu.Unlock()

	var lastErr error
	for name, l := range components.loggers {
		if err := l.Close(); err != nil {
			lastErr = fmt.Errorf("close logger %s: %w", name, err)
		}
	}
	components.loggers = make(map[string]*Logger)
	return lastErr
}

func GetComponentLogger(component string) *Logger {
	return components.get(component)
}

func GetBuilderLogger() *Logger { return GetComponentLogger("builder") }
func GetStorageLogger() *Logger { return GetComponentLogger("storage") }
func GetAPILogger() *Logger     { return GetComponentLogger("api") }
