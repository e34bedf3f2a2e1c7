// Package weights locates model weight files in a read-only directory mounted at startup.
package weights

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gardar/ocrmux/pkg/ocrerr"
)

// Store is a directory of weight files. It never writes to the directory.
type Store struct {
	dir   string
	files map[string]os.FileInfo
}

// Open checks that dir exists and holds every required file. Missing files are
// reported together in one MissingWeights error.
func Open(dir string, required ...string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, ocrerr.Wrap(ocrerr.MissingWeights, err, "weight directory %q unavailable", dir)
	}
	if !info.IsDir() {
		return nil, ocrerr.New(ocrerr.MissingWeights, "weight path %q is not a directory", dir)
	}

	s := &Store{dir: dir, files: make(map[string]os.FileInfo)}
	var missing []string
	for _, name := range required {
		fi, err := os.Stat(filepath.Join(dir, name))
		if err != nil || fi.IsDir() || fi.Size() == 0 {
			missing = append(missing, name)
			continue
		}
		s.files[name] = fi
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, ocrerr.New(ocrerr.MissingWeights, "missing weight files in %s: %v", dir, missing)
	}
	return s, nil
}

// Dir returns the store's directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the absolute path of name, or a MissingWeights error if it does not exist.
func (s *Store) Path(name string) (string, error) {
	p := filepath.Join(s.dir, name)
	if _, ok := s.files[name]; ok {
		return p, nil
	}
	fi, err := os.Stat(p)
	if err != nil || fi.IsDir() {
		return "", ocrerr.New(ocrerr.MissingWeights, "weight file %q not found in %s", name, s.dir)
	}
	return p, nil
}

// Read returns the contents of name.
func (s *Store) Read(name string) ([]byte, error) {
	p, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, ocrerr.Wrap(ocrerr.MissingWeights, err, "failed to read %s", name)
	}
	return data, nil
}

func (s *Store) String() string {
	return fmt.Sprintf("weights(%s, %d files)", s.dir, len(s.files))
}
