package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/furrow/pkg/domain"
)

// FileContext reads workspace files into a thread's file-context cache so
// plans can reference their content without re-reading them every turn.
// All paths are resolved against a fixed root and may not escape it.
type FileContext struct {
	root string
}

// NewFileContext creates a file-context helper rooted at dir.
func NewFileContext(dir string) (*FileContext, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", dir, err)
	}
	return &FileContext{root: abs}, nil
}

// Root returns the absolute directory the helper is confined to.
func (f *FileContext) Root() string { return f.root }

func (f *FileContext) resolve(path string) (string, error) {
	target := filepath.Clean(filepath.Join(f.root, path))
	rel, err := filepath.Rel(f.root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the workspace root", path)
	}
	return target, nil
}

// ReadFile returns the content of a file under the root.
func (f *FileContext) ReadFile(path string) (string, error) {
	target, err := f.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return "", fmt.Errorf("read %q: %w", path, err)
	}
	return string(data), nil
}

// ListFiles renders a flat directory listing, directories marked.
func (f *FileContext) ListFiles(path string) (string, error) {
	target, err := f.resolve(path)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(target)
	if err != nil {
		return "", fmt.Errorf("list %q: %w", path, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Directory listing for: %s\n", path)
	for _, entry := range entries {
		mark := "[FILE]"
		if entry.IsDir() {
			mark = "[DIR] "
		}
		fmt.Fprintf(&b, "%s %s\n", mark, entry.Name())
	}
	return b.String(), nil
}

// CacheUpdate reads a file and returns the update that stores it in the
// thread's file context under the path as given.
func (f *FileContext) CacheUpdate(path string) (domain.Update, error) {
	content, err := f.ReadFile(path)
	if err != nil {
		return domain.Update{}, err
	}
	return domain.Update{CacheFiles: map[string]string{path: content}}, nil
}
