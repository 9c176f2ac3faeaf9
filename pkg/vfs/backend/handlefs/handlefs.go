// Package handlefs provides a backend adapter over a private SQLite store,
// modeled after handle-based storage APIs.
//
// Every entry is addressed through a stable row handle (a UUID) rather than
// its path. Writes to an existing file reuse a cached handle, and newly
// created files are staged: they can be read and written through their
// handle immediately, but do not appear in directory enumeration until
// Flush promotes them. A populate that runs before the owning filesystem
// syncs therefore does not observe half-created files.
package handlefs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/R3gardless/pyodide/pkg/vfs/backend"
	"github.com/R3gardless/pyodide/pkg/vfs/fserrors"
)

// Store implements backend.Adapter on top of a GORM-managed SQLite database.
type Store struct {
	db *gorm.DB

	// handles caches rel -> row ID so repeated writes to the same file
	// skip the path lookup. Entries are dropped on remove and rename.
	mu      sync.Mutex
	handles map[string]string
}

var (
	_ backend.Adapter        = (*Store)(nil)
	_ backend.WriteThrougher = (*Store)(nil)
	_ backend.CloseNotifier  = (*Store)(nil)
)

// Open opens (or creates) a store backed by the SQLite database at path.
func Open(path string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, handles: make(map[string]string)}, nil
}

// OpenInMemory opens a store backed by an in-memory database, for tests.
func OpenInMemory() (*Store, error) {
	db, err := openMemoryDB()
	if err != nil {
		return nil, err
	}
	return &Store{db: db, handles: make(map[string]string)}, nil
}

// ============================================================================
// Adapter Operations
// ============================================================================

// ReadDir lists the direct, non-staged children of the directory at rel.
// Staged files are invisible to enumeration until Flush promotes them.
func (s *Store) ReadDir(ctx context.Context, rel string) ([]backend.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if rel != "" {
		row, err := s.getRow(ctx, rel)
		if err != nil {
			return nil, err
		}
		if !row.Dir {
			return nil, fserrors.NewNotDirectory(rel)
		}
	}

	prefix := childPrefix(rel)

	var rows []fileRow
	err := s.db.WithContext(ctx).
		Where(`rel LIKE ? ESCAPE '\' AND staged = ?`, escapeLike(prefix)+"%", false).
		Find(&rows).Error
	if err != nil {
		return nil, fserrors.NewIO(rel, err)
	}

	var entries []backend.Entry
	for _, row := range rows {
		name := row.Rel[len(prefix):]
		if strings.Contains(name, "/") {
			continue
		}

		kind := backend.KindFile
		if row.Dir {
			kind = backend.KindDirectory
		}

		entries = append(entries, backend.Entry{
			Name:    name,
			Kind:    kind,
			Size:    row.Size,
			ModTime: row.ModTime,
		})
	}

	return entries, nil
}

// ReadFile returns the content of the file at rel. Staged files are
// readable through their handle even before Flush.
func (s *Store) ReadFile(ctx context.Context, rel string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	row, err := s.getRow(ctx, rel)
	if err != nil {
		return nil, err
	}
	if row.Dir {
		return nil, fserrors.NewIsDirectory(rel)
	}

	data := make([]byte, len(row.Data))
	copy(data, row.Data)
	return data, nil
}

// WriteFile stores the content of the file at rel. Existing files are
// updated in place through the cached handle; new files are inserted as
// staged rows.
func (s *Store) WriteFile(ctx context.Context, rel string, data []byte, modTime time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if id, ok := s.cachedHandle(rel); ok {
		return s.updateRow(ctx, rel, id, data, modTime)
	}

	row, err := s.getRow(ctx, rel)
	if err == nil {
		if row.Dir {
			return fserrors.NewIsDirectory(rel)
		}
		s.cacheHandle(rel, row.ID)
		return s.updateRow(ctx, rel, row.ID, data, modTime)
	}
	if !fserrors.IsCode(err, fserrors.ErrNotFound) {
		return err
	}

	row = &fileRow{
		ID:      uuid.New().String(),
		Rel:     rel,
		Size:    int64(len(data)),
		ModTime: modTime,
		Data:    data,
		Staged:  true,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueConstraintError(err) {
			return fserrors.NewAlreadyExists(rel)
		}
		return fserrors.NewIO(rel, err)
	}

	s.cacheHandle(rel, row.ID)
	return nil
}

// Mkdir creates a directory entry at rel. Directories are not staged:
// the namespace skeleton is visible as soon as it is created.
func (s *Store) Mkdir(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	row := &fileRow{
		ID:      uuid.New().String(),
		Rel:     rel,
		Dir:     true,
		ModTime: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueConstraintError(err) {
			return fserrors.NewAlreadyExists(rel)
		}
		return fserrors.NewIO(rel, err)
	}
	return nil
}

// Remove deletes the entry at rel, along with any stray descendants.
func (s *Store) Remove(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	row, err := s.getRow(ctx, rel)
	if err != nil {
		return err
	}

	tx := s.db.WithContext(ctx).Where("rel = ?", rel)
	if row.Dir {
		tx = s.db.WithContext(ctx).
			Where(`rel = ? OR rel LIKE ? ESCAPE '\'`, rel, escapeLike(rel+"/")+"%")
	}
	if err := tx.Delete(&fileRow{}).Error; err != nil {
		return fserrors.NewIO(rel, err)
	}

	s.dropHandles(rel)
	return nil
}

// Rename moves the entry at oldRel to newRel, rewriting subtree paths.
// Row handles stay stable across the move.
func (s *Store) Rename(ctx context.Context, oldRel, newRel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	row, err := s.getRow(ctx, oldRel)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&fileRow{}).
			Where("id = ?", row.ID).
			Update("rel", newRel).Error; err != nil {
			return err
		}

		if !row.Dir {
			return nil
		}

		var children []fileRow
		if err := tx.Where(`rel LIKE ? ESCAPE '\'`, escapeLike(oldRel+"/")+"%").
			Find(&children).Error; err != nil {
			return err
		}

		for _, child := range children {
			moved := newRel + child.Rel[len(oldRel):]
			if err := tx.Model(&fileRow{}).
				Where("id = ?", child.ID).
				Update("rel", moved).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return fserrors.NewAlreadyExists(newRel)
		}
		return fserrors.NewIO(oldRel, err)
	}

	s.dropHandles(oldRel)
	return nil
}

// Stat returns metadata for the entry at rel. Staged files resolve here:
// the creator can stat its own file through the handle before Flush.
func (s *Store) Stat(ctx context.Context, rel string) (backend.Entry, error) {
	if err := ctx.Err(); err != nil {
		return backend.Entry{}, err
	}

	if rel == "" {
		return backend.Entry{Kind: backend.KindDirectory}, nil
	}

	row, err := s.getRow(ctx, rel)
	if err != nil {
		return backend.Entry{}, err
	}

	kind := backend.KindFile
	if row.Dir {
		kind = backend.KindDirectory
	}

	return backend.Entry{
		Name:    baseName(rel),
		Kind:    kind,
		Size:    row.Size,
		ModTime: row.ModTime,
	}, nil
}

// Flush promotes all staged rows, making new files visible to enumeration.
func (s *Store) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Model(&fileRow{}).
		Where("staged = ?", true).
		Update("staged", false).Error
	if err != nil {
		return fserrors.NewIO("", err)
	}
	return nil
}

// WriteThrough reports that namespace changes must be mirrored immediately.
func (s *Store) WriteThrough() bool {
	return true
}

// FileClosed drops the cached access handle for rel once its last
// descriptor is gone. The next write re-resolves the row by path.
func (s *Store) FileClosed(rel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, rel)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ============================================================================
// Helpers
// ============================================================================

// getRow fetches the row for rel, mapping missing rows to NotFound.
func (s *Store) getRow(ctx context.Context, rel string) (*fileRow, error) {
	var row fileRow
	err := s.db.WithContext(ctx).Where("rel = ?", rel).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fserrors.NewNotFound(rel)
		}
		return nil, fserrors.NewIO(rel, err)
	}
	return &row, nil
}

// updateRow rewrites the content of an existing row through its handle.
func (s *Store) updateRow(ctx context.Context, rel, id string, data []byte, modTime time.Time) error {
	res := s.db.WithContext(ctx).Model(&fileRow{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"data":     data,
			"size":     int64(len(data)),
			"mod_time": modTime,
		})
	if res.Error != nil {
		return fserrors.NewIO(rel, res.Error)
	}
	if res.RowsAffected == 0 {
		// Row vanished underneath the cached handle.
		s.dropHandles(rel)
		return fserrors.NewNotFound(rel)
	}
	return nil
}

func (s *Store) cachedHandle(rel string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.handles[rel]
	return id, ok
}

func (s *Store) cacheHandle(rel, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[rel] = id
}

// dropHandles invalidates cached handles at rel and below.
func (s *Store) dropHandles(rel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, rel)
	prefix := rel + "/"
	for cached := range s.handles {
		if strings.HasPrefix(cached, prefix) {
			delete(s.handles, cached)
		}
	}
}

// isUniqueConstraintError checks if the error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// childPrefix returns the rel prefix shared by all descendants of rel.
func childPrefix(rel string) string {
	if rel == "" {
		return ""
	}
	return rel + "/"
}

// baseName returns the final element of a relative path.
func baseName(rel string) string {
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		return rel[i+1:]
	}
	return rel
}

// escapeLike escapes SQL LIKE metacharacters in a literal prefix.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
