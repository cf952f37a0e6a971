package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/annel0/sks-levelbuilder/internal/codec"
	"github.com/annel0/sks-levelbuilder/internal/level"
	"github.com/annel0/sks-levelbuilder/internal/logging"
	"github.com/dgraph-io/badger/v3"
)

const levelKeyPrefix = "level:"

var (
	// ErrLevelNotFound уровень с таким именем не сохранён
	ErrLevelNotFound = errors.New("level not found")
	// ErrInvalidName имя уровня пустое или содержит недопустимые символы
	ErrInvalidName = errors.New("invalid level name")
	// ErrNotReady хранилище закрыто
	ErrNotReady = errors.New("storage is not ready")
)

// LevelKey возвращает ключ уровня в хранилище и кеше
func LevelKey(name string) string {
	return levelKeyPrefix + name
}

// ValidateName проверяет имя уровня: 1..64 символа из [A-Za-z0-9_.-]
func ValidateName(name string) error {
	if name == "" || len(name) > 64 {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}

// LevelStorage хранилище уровней на BadgerDB.
// Уровень хранится в бинарном LBL под ключом "level:<name>".
// Также реализует cache.ColdStorage для сырых ключей.
type LevelStorage struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
	logger  *logging.Logger
}

// NewLevelStorage открывает хранилище в dataPath/levels
func NewLevelStorage(dataPath string) (*LevelStorage, error) {
	dbPath := filepath.Join(dataPath, "levels")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // У BadgerDB свой шумный логгер

	return openLevelStorage(opts, dbPath)
}

// NewInMemoryLevelStorage хранилище без диска (для тестов и демо)
func NewInMemoryLevelStorage() (*LevelStorage, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	return openLevelStorage(opts, "")
}

func openLevelStorage(opts badger.Options, dbPath string) (*LevelStorage, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &LevelStorage{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
		logger:  logging.GetStorageLogger(),
	}, nil
}

// Close закрывает хранилище
func (ls *LevelStorage) Close() error {
	ls.mutex.Lock()
	defer ls.mutex.Unlock()

	if !ls.isReady {
		return nil
	}

	ls.isReady = false
	return ls.db.Close()
}

// SaveLevel кодирует уровень в бинарный LBL и сохраняет под именем name
func (ls *LevelStorage) SaveLevel(ctx context.Context, name string, g *level.Grid) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	data, err := codec.EncodeLBL(g)
	if err != nil {
		return fmt.Errorf("ошибка кодирования уровня %s: %w", name, err)
	}

	if err := ls.Store(ctx, LevelKey(name), data); err != nil {
		return err
	}

	ls.logger.Debug("Уровень %s сохранён (%d байт)", name, len(data))
	return nil
}

// LoadLevel загружает уровень по имени
func (ls *LevelStorage) LoadLevel(ctx context.Context, name string) (*level.Grid, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	data, err := ls.Load(ctx, LevelKey(name))
	if err != nil {
		return nil, err
	}

	g, err := codec.DecodeLBL(data)
	if err != nil {
		logging.LogDecodeError("storage "+name, err, data)
		return nil, fmt.Errorf("повреждённый уровень %s: %w", name, err)
	}
	return g, nil
}

// DeleteLevel удаляет уровень. Удаление несуществующего: ErrLevelNotFound.
func (ls *LevelStorage) DeleteLevel(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	ls.mutex.RLock()
	defer ls.mutex.RUnlock()

	if !ls.isReady {
		return ErrNotReady
	}

	key := []byte(LevelKey(name))
	err := ls.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrLevelNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("ошибка удаления из BadgerDB: %w", err)
	}
	return nil
}

// ListLevels возвращает отсортированные имена сохранённых уровней
func (ls *LevelStorage) ListLevels(ctx context.Context) ([]string, error) {
	ls.mutex.RLock()
	defer ls.mutex.RUnlock()

	if !ls.isReady {
		return nil, ErrNotReady
	}

	var names []string
	err := ls.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(levelKeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := string(it.Item().Key())
			names = append(names, strings.TrimPrefix(key, levelKeyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка уровней: %w", err)
	}

	sort.Strings(names)
	return names, nil
}

// Load читает сырое значение по ключу (cache.ColdStorage)
func (ls *LevelStorage) Load(ctx context.Context, key string) ([]byte, error) {
	ls.mutex.RLock()
	defer ls.mutex.RUnlock()

	if !ls.isReady {
		return nil, ErrNotReady
	}

	var data []byte
	err := ls.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrLevelNotFound, strings.TrimPrefix(key, levelKeyPrefix))
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	return data, nil
}

// Store записывает сырое значение по ключу (cache.ColdStorage)
func (ls *LevelStorage) Store(ctx context.Context, key string, value []byte) error {
	return ls.BatchStore(ctx, map[string][]byte{key: value})
}

// BatchLoad читает несколько ключей; отсутствующие пропускаются
func (ls *LevelStorage) BatchLoad(ctx context.Context, keys []string) (map[string][]byte, error) {
	ls.mutex.RLock()
	defer ls.mutex.RUnlock()

	if !ls.isReady {
		return nil, ErrNotReady
	}

	result := make(map[string][]byte, len(keys))
	err := ls.db.View(func(txn *badger.Txn) error {
		for _, key := range keys {
			item, err := txn.Get([]byte(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			result[key] = val
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка пакетного чтения из BadgerDB: %w", err)
	}
	return result, nil
}

// BatchStore записывает несколько ключей одной транзакцией
func (ls *LevelStorage) BatchStore(ctx context.Context, items map[string][]byte) error {
	ls.mutex.RLock()
	defer ls.mutex.RUnlock()

	if !ls.isReady {
		return ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := ls.db.Update(func(txn *badger.Txn) error {
		for key, value := range items {
			if err := txn.Set([]byte(key), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}
