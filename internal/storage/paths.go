package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// OutputTag is inserted between a source file's stem and extension.
const OutputTag = "_FrameSeal"

// ErrNoOutputDir is returned when the directory next to a source file, where
// its output would go, does not exist.
var ErrNoOutputDir = errors.New("output directory does not exist")

// PathPlanner hands out output paths beside source files that collide
// neither with files on disk nor with paths it has already handed out.
//
// Go note: the zero value is not usable because the map must be allocated;
// use NewPathPlanner. The mutex makes Reserve safe to call from workers, even
// though the batch pipeline reserves everything up front.
type PathPlanner struct {
	mu       sync.Mutex
	reserved map[string]struct{}
}

// NewPathPlanner creates an empty planner. Use one per batch run.
func NewPathPlanner() *PathPlanner {
	return &PathPlanner{reserved: make(map[string]struct{})}
}

// Reserve picks the output path for src with the given extension (".png"):
// {stem}_FrameSeal{ext}, else {stem}_FrameSeal_2{ext}, _3, and so on.
func (p *PathPlanner) Reserve(src, ext string) (string, error) {
	dir := filepath.Dir(src)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%s: %w", dir, ErrNoOutputDir)
	}

	base := filepath.Base(src)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	p.mu.Lock()
	defer p.mu.Unlock()

	for n := 1; ; n++ {
		name := stem + OutputTag
		if n > 1 {
			name += "_" + strconv.Itoa(n)
		}
		candidate := filepath.Join(dir, name+ext)

		if _, taken := p.reserved[candidate]; taken {
			continue
		}
		if _, err := os.Lstat(candidate); err == nil {
			continue
		}

		p.reserved[candidate] = struct{}{}
		return candidate, nil
	}
}

// WriteFile streams write's output into a temporary file next to path and
// renames it into place once write succeeds. On any error the temporary
// file is removed, so path is either complete or absent.
func WriteFile(path string, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".frameseal-*.tmp")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", dir, ErrNoOutputDir)
		}
		return fmt.Errorf("creating temp file: %w", err)
	}

	// Go note: a named return value lets this deferred cleanup see whether
	// the function is failing.
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
