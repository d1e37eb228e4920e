package exercises

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"corrode-course/internal/domain"
)

// Extension marks exercise source files.
const Extension = ".rs"

// DirLoader builds the catalog from an exercise directory.
type DirLoader struct {
	dir string
}

func NewDirLoader(dir string) *DirLoader {
	return &DirLoader{dir: dir}
}

func (l *DirLoader) LoadCatalog(_ context.Context) (domain.Catalog, error) {
	files, err := FindExerciseFiles(l.dir)
	if err != nil {
		return domain.Catalog{}, err
	}
	exercises := make([]domain.Exercise, 0, len(files))
	for _, path := range files {
		name, err := ExerciseName(path)
		if err != nil {
			continue
		}
		title, description, err := parseDocFile(path)
		if err != nil || title == "" {
			title = name
		}
		exercises = append(exercises, domain.Exercise{Name: name, Title: title, Description: description})
	}
	return domain.Catalog{Exercises: exercises}, nil
}

// FindExerciseFiles lists exercise files in dir, sorted by name. Files starting
// with an underscore are drafts and skipped.
func FindExerciseFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s/ directory not found", dir)
		}
		return nil, fmt.Errorf("read exercise dir: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != Extension || strings.HasPrefix(name, "_") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

// ExerciseName strips directory and extension: examples/01_strings.rs -> 01_strings.
func ExerciseName(path string) (string, error) {
	base := filepath.Base(path)
	name, ok := strings.CutSuffix(base, Extension)
	if !ok || name == "" {
		return "", fmt.Errorf("%s: file must have %s extension", path, Extension)
	}
	return name, nil
}

func parseDocFile(path string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()
	title, description := ParseDocHeader(f)
	return title, description, nil
}

// ParseDocHeader reads the leading //! block: the first "# " heading is the title,
// later non-empty lines are joined into the description.
func ParseDocHeader(r io.Reader) (title, description string) {
	var lines []string
	inDoc := false
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "//!") {
			if inDoc && !strings.HasPrefix(line, "//") {
				break
			}
			continue
		}
		inDoc = true
		content := strings.TrimSpace(strings.TrimPrefix(line, "//!"))
		switch {
		case title == "" && strings.HasPrefix(content, "# "):
			title = strings.TrimPrefix(content, "# ")
		case title != "" && content != "":
			lines = append(lines, content)
		}
	}
	return title, strings.TrimSpace(strings.Join(lines, " "))
}
