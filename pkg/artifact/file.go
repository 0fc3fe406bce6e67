package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bridgewise/backend/pkg/common"
	"github.com/bridgewise/backend/pkg/logger"
)

// FileStore keeps artifacts in a local directory. Every artifact is written
// to a temporary file and renamed into place before the "latest" pointer is
// replaced the same way.
type FileStore struct {
	dir  string
	keep int
}

// NewFileStore creates the directory if needed. keep > 0 removes all but the
// newest keep artifacts after every save.
func NewFileStore(dir string, keep int) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact dir: %w", err)
	}
	return &FileStore{dir: dir, keep: keep}, nil
}

func (s *FileStore) Save(ctx context.Context, a *common.GraphArtifact) error {
	if err := validID(a.ID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.writeAtomic(objectName(a.ID), func(f *os.File) error {
		return Encode(f, a)
	}); err != nil {
		return err
	}
	if err := s.writeAtomic(paramsName(a.ID), func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(MetadataOf(a))
	}); err != nil {
		return err
	}
	if err := s.writeAtomic(latestKey, func(f *os.File) error {
		_, err := f.WriteString(a.ID)
		return err
	}); err != nil {
		return err
	}

	logger.Info("[Artifact] Saved artifact", "id", a.ID, "dir", s.dir)
	if s.keep > 0 {
		if err := s.prune(a.ID); err != nil {
			logger.Warn("[Artifact] Failed to prune old artifacts", "err", err)
		}
	}
	return nil
}

func (s *FileStore) writeAtomic(name string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(s.dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, name))
}

func (s *FileStore) LoadLatest(ctx context.Context) (*common.GraphArtifact, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, latestKey))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest pointer: %w", err)
	}
	return s.Load(ctx, strings.TrimSpace(string(data)))
}

func (s *FileStore) Load(ctx context.Context, id string) (*common.GraphArtifact, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, objectName(id)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// prune removes artifacts other than current, oldest first, until keep remain.
func (s *FileStore) prune(current string) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	type item struct {
		id  string
		mod int64
	}
	var items []item
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json.gz") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, item{id: strings.TrimSuffix(name, ".json.gz"), mod: info.ModTime().UnixNano()})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].mod != items[j].mod {
			return items[i].mod > items[j].mod
		}
		return items[i].id > items[j].id
	})

	kept := 0
	for _, it := range items {
		if it.id == current {
			continue
		}
		if kept < s.keep-1 {
			kept++
			continue
		}
		_ = os.Remove(filepath.Join(s.dir, objectName(it.id)))
		_ = os.Remove(filepath.Join(s.dir, paramsName(it.id)))
	}
	return nil
}
