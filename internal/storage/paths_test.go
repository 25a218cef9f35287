package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestPathPlanner_Sequence(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "IMG_0001.jpg")
	p := NewPathPlanner()

	want := []string{
		"IMG_0001_FrameSeal.png",
		"IMG_0001_FrameSeal_2.png",
		"IMG_0001_FrameSeal_3.png",
		"IMG_0001_FrameSeal_4.png",
	}
	for i, name := range want {
		got, err := p.Reserve(src, ".png")
		if err != nil {
			t.Fatalf("Reserve #%d: %v", i+1, err)
		}
		if got != filepath.Join(dir, name) {
			t.Errorf("Reserve #%d = %s, want %s", i+1, filepath.Base(got), name)
		}
	}
}

func TestPathPlanner_SkipsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a_FrameSeal.jpg", "a_FrameSeal_2.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatalf("seeding %s: %v", name, err)
		}
	}

	got, err := NewPathPlanner().Reserve(filepath.Join(dir, "a.tif"), ".jpg")
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if filepath.Base(got) != "a_FrameSeal_3.jpg" {
		t.Errorf("got %s, want a_FrameSeal_3.jpg", filepath.Base(got))
	}
}

func TestPathPlanner_DifferentExtensionsDontCollide(t *testing.T) {
	dir := t.TempDir()
	p := NewPathPlanner()

	png, _ := p.Reserve(filepath.Join(dir, "x.jpg"), ".png")
	tif, _ := p.Reserve(filepath.Join(dir, "x.jpg"), ".tif")
	if filepath.Base(png) != "x_FrameSeal.png" || filepath.Base(tif) != "x_FrameSeal.tif" {
		t.Errorf("got %s and %s", png, tif)
	}
}

func TestPathPlanner_MissingDir(t *testing.T) {
	src := filepath.Join(t.TempDir(), "gone", "photo.jpg")
	if _, err := NewPathPlanner().Reserve(src, ".png"); !errors.Is(err, ErrNoOutputDir) {
		t.Errorf("expected ErrNoOutputDir, got %v", err)
	}
}

func TestPathPlanner_Concurrent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "same.jpg")
	p := NewPathPlanner()

	const n = 32
	paths := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path, err := p.Reserve(src, ".png")
			if err != nil {
				t.Errorf("Reserve: %v", err)
				return
			}
			paths[i] = path
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, path := range paths {
		if seen[path] {
			t.Fatalf("duplicate path %s", path)
		}
		seen[path] = true
	}
	for i := 2; i <= n; i++ {
		if !seen[filepath.Join(dir, fmt.Sprintf("same_FrameSeal_%d.png", i))] {
			t.Errorf("missing same_FrameSeal_%d.png", i)
		}
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	err := WriteFile(path, func(w io.Writer) error {
		_, err := w.Write([]byte("framed"))
		return err
	})
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "framed" {
		t.Errorf("read back %q, %v", data, err)
	}
}

func TestWriteFile_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")
	boom := errors.New("encoder exploded")

	err := WriteFile(path, func(w io.Writer) error {
		w.Write([]byte("partial"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected encoder error, got %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty dir after failed write, found %d entries", len(entries))
	}
}

func TestWriteFile_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "out.bin")
	err := WriteFile(path, func(io.Writer) error { return nil })
	if !errors.Is(err, ErrNoOutputDir) {
		t.Errorf("expected ErrNoOutputDir, got %v", err)
	}
}
