package keystorage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/keelann95/localvault"
)

// RuntimeDirEnv names the environment variable holding the per-login runtime
// directory. Hosts clear it when the login session ends.
const RuntimeDirEnv = "XDG_RUNTIME_DIR"

const (
	dirName  = "localvault"
	dirPerm  = 0o700
	filePerm = 0o600
)

// Verify FileStorage implements the KeyStorage interface.
var _ localvault.KeyStorage = (*FileStorage)(nil)

// DefaultDir returns the session-scoped directory under the runtime directory.
// It fails with ErrStorageUnavailable if the host provides no runtime directory.
func DefaultDir() (string, error) {
	rt := os.Getenv(RuntimeDirEnv)
	if rt == "" {
		return "", errors.Wrapf(localvault.ErrStorageUnavailable, "%s is not set", RuntimeDirEnv)
	}

	return filepath.Join(rt, dirName), nil
}

// FileStorage keeps each slot in its own file inside a session-scoped directory.
// The directory is expected to live on storage the host clears at session end,
// such as the login runtime directory.
type FileStorage struct {
	dir string
}

// NewFileStorage returns a FileStorage rooted at dir, creating it with owner-only
// permissions if needed.
func NewFileStorage(dir string) (*FileStorage, error) {
	if dir == "" {
		return nil, errors.Wrap(localvault.ErrStorageUnavailable, "session directory cannot be empty")
	}

	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, errors.Wrap(localvault.ErrStorageUnavailable, err.Error())
	}

	return &FileStorage{dir: dir}, nil
}

// Dir returns the directory the slots are kept in.
func (s *FileStorage) Dir() string {
	return s.dir
}

func (s *FileStorage) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", errors.Errorf("invalid slot name %q", name)
	}

	return filepath.Join(s.dir, name), nil
}

// Load returns the material in slot name, or nil if the slot is empty.
func (s *FileStorage) Load(_ context.Context, name string) ([]byte, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, errors.Wrap(localvault.ErrStorageUnavailable, err.Error())
	}

	return b, nil
}

// Store atomically replaces the file for slot name with material.
func (s *FileStorage) Store(_ context.Context, name string, material []byte) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return errors.Wrap(localvault.ErrStorageUnavailable, err.Error())
	}

	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return errors.Wrap(localvault.ErrStorageUnavailable, err.Error())
	}

	if _, err := tmp.Write(material); err != nil {
		tmp.Close()
		return errors.Wrap(localvault.ErrStorageUnavailable, err.Error())
	}

	if err := tmp.Close(); err != nil {
		return errors.Wrap(localvault.ErrStorageUnavailable, err.Error())
	}

	if err := os.Rename(tmp.Name(), p); err != nil {
		return errors.Wrap(localvault.ErrStorageUnavailable, err.Error())
	}

	return nil
}

// Clear removes every slot, ending the session.
func (s *FileStorage) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return err
	}

	for _, e := range entries {
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	return nil
}
