package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/okian/padcal/internal/domain/profile"
	"github.com/okian/padcal/pkg/metrics"
)

const lastUsedFile = ".last"

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// FileStore keeps one file per profile in a directory. The file extension
// picks the format; names without one are stored as JSON.
type FileStore struct {
	dir      string
	fileMode os.FileMode
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	s := &FileStore{dir: dir, fileMode: 0o644}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	return s, nil
}

// Dir returns the store's directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// fileName validates name and adds the default extension.
func fileName(name string) (string, error) {
	if !validName.MatchString(name) || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return name, nil
	}
	return name + ".json", nil
}

// Save implements Store. Files are replaced atomically.
func (s *FileStore) Save(ctx context.Context, name string, prof profile.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	file, err := fileName(name)
	if err != nil {
		metrics.RecordProfileSave("invalid")
		return err
	}
	data, err := profile.Encode(prof, profile.FormatFromPath(file))
	if err != nil {
		metrics.RecordProfileSave("invalid")
		return err
	}
	if err := s.writeFile(file, data); err != nil {
		metrics.RecordProfileSave("error")
		return err
	}
	metrics.RecordProfileSave("ok")
	return s.setLastUsed(file)
}

func (s *FileStore) writeFile(file string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, "."+file+".*")
	if err != nil {
		return fmt.Errorf("save %s: %w", file, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("save %s: %w", file, err)
	}
	if err := tmp.Chmod(s.fileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("save %s: %w", file, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save %s: %w", file, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, file)); err != nil {
		return fmt.Errorf("save %s: %w", file, err)
	}
	return nil
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context, name string) (profile.Profile, error) {
	prof, file, err := s.read(ctx, name)
	if err != nil {
		return profile.Profile{}, err
	}
	return prof, s.setLastUsed(file)
}

// Read implements Store.
func (s *FileStore) Read(ctx context.Context, name string) (profile.Profile, error) {
	prof, _, err := s.read(ctx, name)
	return prof, err
}

func (s *FileStore) read(ctx context.Context, name string) (profile.Profile, string, error) {
	if err := ctx.Err(); err != nil {
		return profile.Profile{}, "", err
	}
	file, err := fileName(name)
	if err != nil {
		metrics.RecordProfileLoad("invalid")
		return profile.Profile{}, "", err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, file))
	if errors.Is(err, fs.ErrNotExist) {
		metrics.RecordProfileLoad("not_found")
		return profile.Profile{}, "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		metrics.RecordProfileLoad("error")
		return profile.Profile{}, "", fmt.Errorf("load %s: %w", file, err)
	}
	prof, err := profile.Decode(data, profile.FormatFromPath(file))
	if err != nil {
		metrics.RecordProfileLoad("malformed")
		return profile.Profile{}, "", fmt.Errorf("load %s: %w", file, err)
	}
	metrics.RecordProfileLoad("ok")
	return prof, file, nil
}

// List implements Store.
func (s *FileStore) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	out := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(de.Name()))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{
			Name:     de.Name(),
			Format:   profile.FormatFromPath(de.Name()).String(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	file, err := fileName(name)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.dir, file))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", file, err)
	}
	if last, ok := s.LastUsed(ctx); ok && last == file {
		_ = os.Remove(filepath.Join(s.dir, lastUsedFile))
	}
	return nil
}

// LastUsed implements Store.
func (s *FileStore) LastUsed(context.Context) (string, bool) {
	data, err := os.ReadFile(filepath.Join(s.dir, lastUsedFile))
	if err != nil {
		return "", false
	}
	name := strings.TrimSpace(string(data))
	return name, name != ""
}

func (s *FileStore) setLastUsed(file string) error {
	return s.writeFile(lastUsedFile, []byte(file+"\n"))
}
