package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/upb/rag-pipeline/models"
)

// File loads documents from a YAML or JSON file, or from a directory of
// .txt files where each file is one document named after the file.
type File struct {
	Path string
}

// NewFile returns a loader for path.
func NewFile(path string) *File {
	return &File{Path: path}
}

func (f *File) Load(ctx context.Context) ([]models.Document, error) {
	info, err := os.Stat(f.Path)
	if err != nil {
		return nil, fmt.Errorf("stat corpus path: %w", err)
	}
	if info.IsDir() {
		return f.loadDir(ctx)
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read corpus file: %w", err)
	}
	return Decode(data)
}

func (f *File) Name() string { return "file" }

func (f *File) loadDir(ctx context.Context) ([]models.Document, error) {
	entries, err := os.ReadDir(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read corpus directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	docs := make([]models.Document, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(f.Path, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		docs = append(docs, models.NewDocument(strings.TrimSuffix(name, filepath.Ext(name)), string(data)))
	}
	return docs, nil
}
