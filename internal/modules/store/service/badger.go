package service

import (
	"context"

	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"
)

// BadgerBackend - встроенное хранилище, семейство лежит под ключом "family/<name>".
type BadgerBackend struct {
	db *badger.DB
}

// NewBadgerBackend открывает базу в dir. Пустой dir - in-memory режим (для тестов).
func NewBadgerBackend(dir string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open badger")
	}
	return &BadgerBackend{db: db}, nil
}

func familyKey(family string) []byte { return []byte("family/" + family) }

func (b *BadgerBackend) Load(_ context.Context, family string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(familyKey(family))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "badger get")
	}
	return out, nil
}

func (b *BadgerBackend) Save(_ context.Context, family string, data []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(familyKey(family), data)
	})
	return errors.Wrap(err, "badger set")
}

func (b *BadgerBackend) Close() error {
	return b.db.Close()
}
