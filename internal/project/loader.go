// Package project loads SQL model files into core.Model values.
package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leapstack-labs/leaplineage/pkg/core"
)

// DefaultSchema is used for models placed directly in the models directory.
const DefaultSchema = "main"

// Load reads every *.sql file under dir and returns the models sorted by
// unique id. projectName becomes the first FQN component and the lineage
// namespace of every model.
func Load(dir, projectName string) ([]*core.Model, error) {
	if projectName == "" {
		return nil, errors.New("project name is required")
	}

	var models []*core.Model
	seen := make(map[string]string)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".sql" {
			return nil
		}

		m, err := loadFile(dir, path, projectName)
		if err != nil {
			return err
		}
		if prev, dup := seen[m.UniqueID]; dup {
			return fmt.Errorf("duplicate model %s defined in %s and %s", m.UniqueID, prev, m.OriginalFilePath)
		}
		seen[m.UniqueID] = m.OriginalFilePath
		models = append(models, m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load models from %s: %w", dir, err)
	}

	sort.Slice(models, func(i, j int) bool { return models[i].UniqueID < models[j].UniqueID })
	return models, nil
}

func loadFile(dir, path, projectName string) (*core.Model, error) {
	content, err := os.ReadFile(path) //nolint:gosec // path comes from walking the models directory
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return nil, err
	}
	original := filepath.ToSlash(filepath.Join(filepath.Base(dir), rel))

	fm, sql, err := ExtractFrontmatter(string(content))
	if err != nil {
		var parseErr *FrontmatterParseError
		var fieldErr *UnknownFieldError
		switch {
		case errors.As(err, &parseErr):
			parseErr.File = original
		case errors.As(err, &fieldErr):
			fieldErr.File = original
		}
		return nil, err
	}

	var dirs []string
	if d := filepath.Dir(rel); d != "." {
		dirs = strings.Split(filepath.ToSlash(d), "/")
	}

	name := fm.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(rel), ".sql")
	}
	schema := fm.Schema
	if schema == "" {
		schema = DefaultSchema
		if len(dirs) > 0 {
			schema = dirs[0]
		}
	}
	materialized := fm.Materialized
	if materialized == "" {
		materialized = core.MaterializationTable
	}

	fqn := append(append([]string{projectName}, dirs...), name)

	return &core.Model{
		UniqueID:         "model." + projectName + "." + name,
		FQN:              fqn,
		RelationName:     schema + "." + name,
		OriginalFilePath: original,
		CompiledSQL:      sql,
		Materialized:     materialized,
		Schema:           schema,
		Name:             name,
		Description:      fm.Description,
	}, nil
}
