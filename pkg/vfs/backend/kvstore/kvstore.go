// Package kvstore provides a persistent backend adapter backed by BadgerDB.
//
// The adapter mirrors the mounted subtree into a local key-value database,
// keyed by path relative to the mount root. It is a deferred backend: the
// filesystem buffers changes in memory and pushes them here during an
// explicit sync, so unsynced work is lost on crash but the database itself
// is always internally consistent.
package kvstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/R3gardless/pyodide/pkg/vfs/backend"
	"github.com/R3gardless/pyodide/pkg/vfs/fserrors"
)

// Store implements backend.Adapter on top of a BadgerDB database.
//
// Thread Safety:
// All operations use BadgerDB's transaction support for atomicity.
type Store struct {
	db *badgerdb.DB

	// id identifies this store instance across open/close cycles.
	id uuid.UUID
}

var _ backend.Adapter = (*Store)(nil)

// Open opens (or creates) a BadgerDB-backed store at the given directory.
func Open(path string) (*Store, error) {
	opts := badgerdb.DefaultOptions(path)
	opts.Logger = nil

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", path, err)
	}

	return newStore(db)
}

// OpenInMemory opens a store that lives entirely in memory. Useful for tests
// that exercise the deferred sync path without touching disk.
func OpenInMemory() (*Store, error) {
	opts := badgerdb.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger database: %w", err)
	}

	return newStore(db)
}

// newStore wraps an open database, loading or minting the store identity.
func newStore(db *badgerdb.DB) (*Store, error) {
	s := &Store{db: db}

	err := db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keyStoreID))
		if err == badgerdb.ErrKeyNotFound {
			s.id = uuid.New()
			return txn.Set([]byte(keyStoreID), []byte(s.id.String()))
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			id, err := uuid.Parse(string(val))
			if err != nil {
				return fmt.Errorf("corrupt store identity: %w", err)
			}
			s.id = id
			return nil
		})
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// ID returns the stable identity of this store instance.
func (s *Store) ID() uuid.UUID {
	return s.id
}

// ============================================================================
// Adapter Operations
// ============================================================================

// ReadDir lists the direct children of the directory at rel.
func (s *Store) ReadDir(ctx context.Context, rel string) ([]backend.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []backend.Entry

	err := s.db.View(func(txn *badgerdb.Txn) error {
		if rel != "" {
			rec, err := getEntryTx(txn, rel)
			if err != nil {
				return err
			}
			if rec.Kind != backend.KindDirectory {
				return fserrors.NewNotDirectory(rel)
			}
		}

		prefix := keyMetaPrefix(rel)

		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			name := string(item.Key()[len(prefix):])
			if strings.Contains(name, "/") {
				continue
			}

			err := item.Value(func(val []byte) error {
				rec, err := decodeEntry(val)
				if err != nil {
					return err
				}
				entries = append(entries, backend.Entry{
					Name:    name,
					Kind:    rec.Kind,
					Size:    rec.Size,
					ModTime: rec.ModTime,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// ReadFile returns the content of the file at rel.
func (s *Store) ReadFile(ctx context.Context, rel string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte

	err := s.db.View(func(txn *badgerdb.Txn) error {
		rec, err := getEntryTx(txn, rel)
		if err != nil {
			return err
		}
		if rec.Kind != backend.KindFile {
			return fserrors.NewIsDirectory(rel)
		}

		item, err := txn.Get(keyContent(rel))
		if err == badgerdb.ErrKeyNotFound {
			data = []byte{}
			return nil
		}
		if err != nil {
			return err
		}

		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	return data, nil
}

// WriteFile stores the content of the file at rel, creating it if needed.
func (s *Store) WriteFile(ctx context.Context, rel string, data []byte, modTime time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		meta, err := encodeEntry(&entryRecord{
			Kind:    backend.KindFile,
			Size:    int64(len(data)),
			ModTime: modTime,
		})
		if err != nil {
			return err
		}
		if err := txn.Set(keyMeta(rel), meta); err != nil {
			return err
		}
		return txn.Set(keyContent(rel), data)
	})
}

// Mkdir creates a directory entry at rel.
func (s *Store) Mkdir(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(keyMeta(rel))
		if err == nil {
			return fserrors.NewAlreadyExists(rel)
		}
		if err != badgerdb.ErrKeyNotFound {
			return err
		}

		meta, err := encodeEntry(&entryRecord{
			Kind:    backend.KindDirectory,
			ModTime: time.Now(),
		})
		if err != nil {
			return err
		}
		return txn.Set(keyMeta(rel), meta)
	})
}

// Remove deletes the entry at rel. Directory entries are expected to be
// empty; any stray descendant keys are cleaned up as well.
func (s *Store) Remove(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		rec, err := getEntryTx(txn, rel)
		if err != nil {
			return err
		}

		if rec.Kind == backend.KindDirectory {
			if err := deleteSubtreeTx(txn, rel); err != nil {
				return err
			}
		}

		if err := txn.Delete(keyMeta(rel)); err != nil {
			return err
		}
		return txn.Delete(keyContent(rel))
	})
}

// Rename moves the entry at oldRel to newRel, carrying any subtree with it.
func (s *Store) Rename(ctx context.Context, oldRel, newRel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		rec, err := getEntryTx(txn, oldRel)
		if err != nil {
			return err
		}

		if err := moveEntryTx(txn, oldRel, newRel); err != nil {
			return err
		}

		if rec.Kind != backend.KindDirectory {
			return nil
		}

		// Collect subtree keys first; mutating while iterating is unsafe.
		var children []string

		prefix := keyMetaPrefix(oldRel)

		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			children = append(children, string(it.Item().Key()[len(prefix):]))
		}
		it.Close()

		for _, child := range children {
			if err := moveEntryTx(txn, oldRel+"/"+child, newRel+"/"+child); err != nil {
				return err
			}
		}
		return nil
	})
}

// Stat returns metadata for the entry at rel.
func (s *Store) Stat(ctx context.Context, rel string) (backend.Entry, error) {
	if err := ctx.Err(); err != nil {
		return backend.Entry{}, err
	}

	var entry backend.Entry

	err := s.db.View(func(txn *badgerdb.Txn) error {
		if rel == "" {
			entry = backend.Entry{Kind: backend.KindDirectory}
			return nil
		}

		rec, err := getEntryTx(txn, rel)
		if err != nil {
			return err
		}

		entry = backend.Entry{
			Name:    baseName(rel),
			Kind:    rec.Kind,
			Size:    rec.Size,
			ModTime: rec.ModTime,
		}
		return nil
	})
	if err != nil {
		return backend.Entry{}, err
	}

	return entry, nil
}

// Flush forces all pending writes to stable storage.
func (s *Store) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.db.Opts().InMemory {
		return nil
	}
	return s.db.Sync()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ============================================================================
// Transaction Helpers
// ============================================================================

// getEntryTx reads and decodes the metadata record for rel within txn.
// The mount root has no record of its own and always resolves to a directory.
func getEntryTx(txn *badgerdb.Txn, rel string) (*entryRecord, error) {
	if rel == "" {
		return &entryRecord{Kind: backend.KindDirectory}, nil
	}

	item, err := txn.Get(keyMeta(rel))
	if err == badgerdb.ErrKeyNotFound {
		return nil, fserrors.NewNotFound(rel)
	}
	if err != nil {
		return nil, err
	}

	var rec *entryRecord
	err = item.Value(func(val []byte) error {
		var decErr error
		rec, decErr = decodeEntry(val)
		return decErr
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// moveEntryTx rewrites the meta and content keys of a single entry.
func moveEntryTx(txn *badgerdb.Txn, oldRel, newRel string) error {
	item, err := txn.Get(keyMeta(oldRel))
	if err != nil {
		return err
	}
	meta, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	if err := txn.Set(keyMeta(newRel), meta); err != nil {
		return err
	}
	if err := txn.Delete(keyMeta(oldRel)); err != nil {
		return err
	}

	item, err = txn.Get(keyContent(oldRel))
	if err == badgerdb.ErrKeyNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	if err := txn.Set(keyContent(newRel), data); err != nil {
		return err
	}
	return txn.Delete(keyContent(oldRel))
}

// deleteSubtreeTx removes every key below the directory at rel.
func deleteSubtreeTx(txn *badgerdb.Txn, rel string) error {
	var keys [][]byte

	prefix := keyMetaPrefix(rel)

	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return err
		}
		child := string(key[len(prefixMeta):])
		if err := txn.Delete(keyContent(child)); err != nil {
			return err
		}
	}
	return nil
}

// baseName returns the final element of a relative path.
func baseName(rel string) string {
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		return rel[i+1:]
	}
	return rel
}
