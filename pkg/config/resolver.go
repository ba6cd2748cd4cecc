// Copyright 2026 DocBro Authors
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/behemotion/docbro/internal/errors"
	"gopkg.in/yaml.v3"
)

const globalSettingsFile = "settings.yaml"

// globalDocument is the on-disk shape of <config-dir>/settings.yaml: one
// settings block per project type, matching GlobalDefaultsSeed's keys.
type globalDocument struct {
	Crawling map[string]any `yaml:"crawling,omitempty"`
	Data     map[string]any `yaml:"data,omitempty"`
	Storage  map[string]any `yaml:"storage,omitempty"`
}

func (g *globalDocument) forType(t ProjectType) map[string]any {
	switch t {
	case TypeCrawling:
		return g.Crawling
	case TypeData:
		return g.Data
	case TypeStorage:
		return g.Storage
	}
	return nil
}

func (g *globalDocument) setForType(t ProjectType, m map[string]any) {
	switch t {
	case TypeCrawling:
		g.Crawling = m
	case TypeData:
		g.Data = m
	case TypeStorage:
		g.Storage = m
	}
}

// Resolver loads, merges, and persists configuration for projects rooted
// under a single config directory.
type Resolver struct {
	dir string
}

// NewResolver returns a Resolver rooted at dir (the CLI uses
// ~/.docbro/config by default), creating the directory and seeding
// settings.yaml with type defaults on first use. The file is read again on
// every resolution; there is no in-memory cache of the global layer.
func NewResolver(dir string) (*Resolver, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.NewPermissionError(
			"Cannot create configuration directory",
			fmt.Sprintf("Permission denied creating %s", dir),
			"Check directory permissions or run with appropriate privileges",
			err,
		)
	}
	r := &Resolver{dir: dir}
	path := r.globalPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		seed := &globalDocument{
			Crawling: typeDefaults(TypeCrawling),
			Data:     typeDefaults(TypeData),
			Storage:  typeDefaults(TypeStorage),
		}
		if err := r.writeGlobal(seed); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Resolver) globalPath() string { return filepath.Join(r.dir, globalSettingsFile) }

func (r *Resolver) projectPath(name string) string {
	return filepath.Join(r.dir, "projects", normalizeEnvName(name)+".yaml")
}

func (r *Resolver) readGlobal() (*globalDocument, error) {
	data, err := os.ReadFile(r.globalPath())
	if os.IsNotExist(err) {
		return &globalDocument{}, nil
	}
	if err != nil {
		return nil, errors.NewConfigError(
			"Cannot read global configuration",
			fmt.Sprintf("Failed to read %s", r.globalPath()),
			"Check file permissions and ensure the file exists",
			err,
		)
	}
	var doc globalDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewConfigError(
			"Invalid global configuration format",
			"YAML parsing failed - settings.yaml contains syntax errors",
			"Edit settings.yaml to fix syntax errors",
			err,
		)
	}
	return &doc, nil
}

func (r *Resolver) writeGlobal(doc *globalDocument) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return errors.NewInternalError(
			"Cannot encode global configuration",
			"YAML marshaling failed unexpectedly",
			"This is a bug. Please report it with your configuration details",
			err,
		)
	}
	if err := os.WriteFile(r.globalPath(), data, 0o600); err != nil {
		return errors.NewPermissionError(
			"Cannot write global configuration",
			fmt.Sprintf("Permission denied writing to %s", r.globalPath()),
			"Check file permissions and ensure sufficient disk space",
			err,
		)
	}
	return nil
}

func (r *Resolver) readProjectOverrides(name string) (map[string]any, error) {
	data, err := os.ReadFile(r.projectPath(name))
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, errors.NewConfigError(
			"Cannot read project configuration",
			fmt.Sprintf("Failed to read overrides for project %q", name),
			"Check file permissions and ensure the file exists",
			err,
		)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.NewConfigError(
			"Invalid project configuration format",
			fmt.Sprintf("YAML parsing failed for project %q overrides", name),
			"Fix the syntax error or run reset_project to discard it",
			err,
		)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func (r *Resolver) writeProjectOverrides(name string, m map[string]any) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return errors.NewInternalError(
			"Cannot encode project configuration",
			"YAML marshaling failed unexpectedly",
			"This is a bug. Please report it with your configuration details",
			err,
		)
	}
	dir := filepath.Dir(r.projectPath(name))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.NewPermissionError(
			"Cannot create project configuration directory",
			fmt.Sprintf("Permission denied creating %s", dir),
			"Check directory permissions or run with appropriate privileges",
			err,
		)
	}
	if err := os.WriteFile(r.projectPath(name), data, 0o600); err != nil {
		return errors.NewPermissionError(
			"Cannot write project configuration",
			fmt.Sprintf("Permission denied writing overrides for project %q", name),
			"Check file permissions and ensure sufficient disk space",
			err,
		)
	}
	return nil
}

// GetGlobal returns the current type-default layer for t (layer 1 merged
// with layer 2).
func (r *Resolver) GetGlobal(t ProjectType) (map[string]any, error) {
	doc, err := r.readGlobal()
	if err != nil {
		return nil, err
	}
	effective, _ := mergeLayers(
		layer{typeDefaults(t), SourceTypeDefault},
		layer{doc.forType(t), SourceGlobal},
	)
	return effective, nil
}

// GetProject resolves the full four-layer configuration for a project.
func (r *Resolver) GetProject(t ProjectType, name string) (*Summary, error) {
	doc, err := r.readGlobal()
	if err != nil {
		return nil, err
	}
	overrides, err := r.readProjectOverrides(name)
	if err != nil {
		return nil, err
	}
	envLayer, envWarnings := envOverrides(t, name)

	effective, sources := mergeLayers(
		layer{typeDefaults(t), SourceTypeDefault},
		layer{doc.forType(t), SourceGlobal},
		layer{overrides, SourceProject},
		layer{envLayer, SourceEnvironment},
	)

	result := validate(t, effective)
	result.Warnings = append(result.Warnings, envWarnings...)

	return &Summary{Effective: effective, SettingSources: sources, Validation: result}, nil
}

// UpdateProject merges partial into the project's override layer and
// persists it, returning the newly resolved summary. Values set to nil
// remove the key, letting a caller fall back to the global/default layer
// for that key. The merged result is validated before anything is written;
// an invalid merge returns an error and leaves the persisted overrides
// untouched.
func (r *Resolver) UpdateProject(t ProjectType, name string, partial map[string]any) (*Summary, error) {
	overrides, err := r.readProjectOverrides(name)
	if err != nil {
		return nil, err
	}
	for k, v := range partial {
		if v == nil {
			delete(overrides, k)
			continue
		}
		overrides[k] = v
	}
	return r.commitOverrides(t, name, overrides)
}

// commitOverrides resolves the configuration that would result from
// persisting overrides, validates it, and writes only when it passes, so
// a failed update never changes what is on disk.
func (r *Resolver) commitOverrides(t ProjectType, name string, overrides map[string]any) (*Summary, error) {
	doc, err := r.readGlobal()
	if err != nil {
		return nil, err
	}
	envLayer, envWarnings := envOverrides(t, name)

	effective, sources := mergeLayers(
		layer{typeDefaults(t), SourceTypeDefault},
		layer{doc.forType(t), SourceGlobal},
		layer{overrides, SourceProject},
		layer{envLayer, SourceEnvironment},
	)

	result := validate(t, effective)
	result.Warnings = append(result.Warnings, envWarnings...)
	if !result.Valid {
		return nil, errors.NewInputError(
			"Invalid settings",
			strings.Join(result.Errors, "; "),
			"Fix the reported settings; the stored configuration was not changed",
		)
	}

	if err := r.writeProjectOverrides(name, overrides); err != nil {
		return nil, err
	}
	return &Summary{Effective: effective, SettingSources: sources, Validation: result}, nil
}

// ResetProject discards all project-level overrides, reverting the project
// to type-default + global.
func (r *Resolver) ResetProject(t ProjectType, name string) (*Summary, error) {
	if err := r.writeProjectOverrides(name, map[string]any{}); err != nil {
		return nil, err
	}
	return r.GetProject(t, name)
}

// Export serializes a project's override layer as YAML or JSON. Only the
// project override layer is exported verbatim; type defaults, global
// defaults and environment overrides are not included.
func (r *Resolver) Export(t ProjectType, name, format string) ([]byte, error) {
	overrides, err := r.readProjectOverrides(name)
	if err != nil {
		return nil, err
	}
	switch format {
	case "yaml", "":
		return yaml.Marshal(overrides)
	case "json":
		return marshalJSONSorted(overrides)
	default:
		return nil, errors.NewInputError(
			"Unsupported export format",
			fmt.Sprintf("format %q is not recognized", format),
			"Use \"yaml\" or \"json\"",
		)
	}
}

// Import parses text (per format) and either merges it over or replaces the
// project's override layer, depending on merge.
func (r *Resolver) Import(t ProjectType, name, text, format string, merge bool) (*Summary, error) {
	incoming, err := unmarshalSettings(text, format)
	if err != nil {
		return nil, err
	}

	if !merge {
		return r.commitOverrides(t, name, incoming)
	}
	return r.UpdateProject(t, name, incoming)
}

// Summary resolves and validates a project's configuration without writing
// anything; it is GetProject's read-only
// alias, kept distinct so call sites document intent.
func (r *Resolver) Summary(t ProjectType, name string) (*Summary, error) {
	return r.GetProject(t, name)
}

func unmarshalSettings(text, format string) (map[string]any, error) {
	var m map[string]any
	var err error
	switch format {
	case "yaml", "":
		err = yaml.Unmarshal([]byte(text), &m)
	case "json":
		err = unmarshalJSON([]byte(text), &m)
	default:
		return nil, errors.NewInputError(
			"Unsupported import format",
			fmt.Sprintf("format %q is not recognized", format),
			"Use \"yaml\" or \"json\"",
		)
	}
	if err != nil {
		return nil, errors.NewInputError(
			"Cannot parse configuration text",
			fmt.Sprintf("%s parsing failed", format),
			"Check the input for syntax errors",
		)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}
