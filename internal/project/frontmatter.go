package project

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leaplineage/pkg/core"
)

// Frontmatter is the YAML block at the top of a model file.
// Unknown fields cause parse errors.
type Frontmatter struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	Materialized string `yaml:"materialized"`
	Schema       string `yaml:"schema"`
}

// frontmatterPattern matches a leading /*--- ... ---*/ block.
var frontmatterPattern = regexp.MustCompile(`(?s)^\s*/\*---\s*\n(.*?)\s*---\*/`)

var knownFields = map[string]bool{
	"name":         true,
	"description":  true,
	"materialized": true,
	"schema":       true,
}

// ExtractFrontmatter splits content into its frontmatter and the SQL that
// follows. Content without frontmatter yields an empty Frontmatter.
func ExtractFrontmatter(content string) (*Frontmatter, string, error) {
	matches := frontmatterPattern.FindStringSubmatch(content)
	if matches == nil {
		return &Frontmatter{}, strings.TrimSpace(content), nil
	}

	fm, err := parseFrontmatterYAML(matches[1])
	if err != nil {
		return nil, "", err
	}
	return fm, strings.TrimSpace(content[len(matches[0]):]), nil
}

func parseFrontmatterYAML(yamlContent string) (*Frontmatter, error) {
	var rawMap map[string]any
	if err := yaml.Unmarshal([]byte(yamlContent), &rawMap); err != nil {
		return nil, &FrontmatterParseError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	for field := range rawMap {
		if !knownFields[field] {
			return nil, &UnknownFieldError{Field: field}
		}
	}

	var fm Frontmatter
	if err := yaml.Unmarshal([]byte(yamlContent), &fm); err != nil {
		return nil, &FrontmatterParseError{Message: fmt.Sprintf("failed to parse frontmatter: %v", err)}
	}

	if fm.Materialized != "" && !core.IsValidMaterialization(fm.Materialized) {
		return nil, &FrontmatterParseError{
			Message: fmt.Sprintf("invalid materialized value: %q, must be one of: table, view", fm.Materialized),
		}
	}
	return &fm, nil
}

// FrontmatterParseError represents a frontmatter parsing error.
type FrontmatterParseError struct {
	File    string
	Message string
}

func (e *FrontmatterParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// UnknownFieldError represents an error for unknown frontmatter fields.
type UnknownFieldError struct {
	File  string
	Field string
}

func (e *UnknownFieldError) Error() string {
	msg := fmt.Sprintf("unknown field %q in frontmatter", e.Field)
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, msg)
	}
	return msg
}
