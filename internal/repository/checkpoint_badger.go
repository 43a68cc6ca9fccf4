package repository

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

const checkpointKeyPrefix = "checkpoint/"

// badgerCheckpointStore keeps checkpoints in an embedded badger database,
// one 8 byte big-endian value per name
type badgerCheckpointStore struct {
	db *badger.DB
}

// OpenBadgerCheckpointStore opens (or creates) the store under dir. An empty dir
// opens an in-memory store.
func OpenBadgerCheckpointStore(dir string, log *logrus.Logger) (CheckpointStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	if log != nil {
		opts = opts.WithLogger(log)
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint store %q: %w", dir, err)
	}
	return &badgerCheckpointStore{db: db}, nil
}

func checkpointKey(name string) []byte {
	return []byte(checkpointKeyPrefix + name)
}

func readBlock(txn *badger.Txn, key []byte) (uint64, bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	var block uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt checkpoint value of %d bytes", len(val))
		}
		block = binary.BigEndian.Uint64(val)
		return nil
	})
	return block, err == nil, err
}

// Load returns the stored block for name
func (s *badgerCheckpointStore) Load(_ context.Context, name string) (uint64, bool, error) {
	var (
		block uint64
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		block, found, err = readBlock(txn, checkpointKey(name))
		return err
	})
	if err != nil {
		return 0, false, fmt.Errorf("failed to load checkpoint %s: %w", name, err)
	}
	return block, found, nil
}

// Save raises the checkpoint to block, a lower block is ignored
func (s *badgerCheckpointStore) Save(_ context.Context, name string, block uint64) error {
	key := checkpointKey(name)
	err := s.db.Update(func(txn *badger.Txn) error {
		current, found, err := readBlock(txn, key)
		if err != nil {
			return err
		}
		if found && current >= block {
			return nil
		}
		val := make([]byte, 8)
		binary.BigEndian.PutUint64(val, block)
		return txn.Set(key, val)
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", name, err)
	}
	return nil
}

// Close flushes and closes the badger database
func (s *badgerCheckpointStore) Close() error {
	return s.db.Close()
}
