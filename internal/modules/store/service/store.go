package service

import (
	"context"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	FamilyPositions = "positions"
	FamilySignals   = "signals"
	FamilyCursors   = "cursors"
)

// ErrNotFound - в бэкенде нет записи для семейства.
var ErrNotFound = errors.New("store: family not found")

// PersistError - изменение применено в памяти, но не записано в бэкенд.
type PersistError struct {
	Family string
	Err    error
}

func (e *PersistError) Error() string { return "persist " + e.Family + ": " + e.Err.Error() }
func (e *PersistError) Unwrap() error { return e.Err }

// Backend хранит семейство целиком одним блобом.
type Backend interface {
	Load(ctx context.Context, family string) ([]byte, error)
	Save(ctx context.Context, family string, data []byte) error
	Close() error
}

// Family - кэш одного семейства записей поверх Backend.
// Чтение и запись идут целиком: load-all / mutate / replace-all.
// Если сохранение упало, состояние в памяти остаётся и уходит в бэкенд при следующей записи или Flush.
type Family[T any] struct {
	name    string
	backend Backend
	log     *zap.Logger

	mu      sync.Mutex
	loaded  bool
	items   []T
	dirty   bool
	version uint64

	saveMu sync.Mutex
}

func NewFamily[T any](name string, backend Backend, log *zap.Logger) *Family[T] {
	return &Family[T]{
		name:    name,
		backend: backend,
		log:     log.Named("store").With(zap.String("family", name)),
	}
}

func (f *Family[T]) Name() string { return f.name }

// Load подтягивает семейство из бэкенда, если оно ещё не загружено.
func (f *Family[T]) Load(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ensureLoaded(ctx)
}

func (f *Family[T]) ensureLoaded(ctx context.Context) error {
	if f.loaded {
		return nil
	}
	data, err := f.backend.Load(ctx, f.name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Wrapf(err, "load %s", f.name)
	}
	var items []T
	if len(data) > 0 {
		if err := sonic.Unmarshal(data, &items); err != nil {
			return errors.Wrapf(err, "decode %s", f.name)
		}
	}
	f.items = items
	f.loaded = true
	return nil
}

// LoadAll возвращает копию всех записей.
func (f *Family[T]) LoadAll(ctx context.Context) ([]T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return clone(f.items), nil
}

// ReplaceAll заменяет семейство целиком.
func (f *Family[T]) ReplaceAll(ctx context.Context, items []T) error {
	return f.Update(ctx, func([]T) ([]T, error) {
		return items, nil
	})
}

// Update - атомарный read-modify-write. fn получает копию и возвращает новое содержимое.
// Ошибка fn ничего не меняет. Ошибка сохранения возвращается, но изменение в памяти остаётся.
func (f *Family[T]) Update(ctx context.Context, fn func(items []T) ([]T, error)) error {
	f.mu.Lock()
	if err := f.ensureLoaded(ctx); err != nil {
		f.mu.Unlock()
		return err
	}
	next, err := fn(clone(f.items))
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.items = clone(next)
	f.dirty = true
	f.version++
	f.mu.Unlock()

	return f.Flush(ctx)
}

// Flush пишет в бэкенд несохранённые изменения.
func (f *Family[T]) Flush(ctx context.Context) error {
	f.saveMu.Lock()
	defer f.saveMu.Unlock()

	f.mu.Lock()
	if !f.dirty {
		f.mu.Unlock()
		return nil
	}
	version := f.version
	data, err := sonic.Marshal(f.items)
	f.mu.Unlock()
	if err != nil {
		return errors.Wrapf(err, "encode %s", f.name)
	}

	if err := f.backend.Save(ctx, f.name, data); err != nil {
		f.log.Warn("persist failed, keeping state in memory", zap.Error(err))
		return &PersistError{Family: f.name, Err: err}
	}

	f.mu.Lock()
	if f.version == version {
		f.dirty = false
	}
	f.mu.Unlock()
	return nil
}

// Dirty - есть ли изменения, не попавшие в бэкенд.
func (f *Family[T]) Dirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty
}

func clone[T any](items []T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}
