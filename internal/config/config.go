// Package config implements the Configuration Model (spec.md §4.4): a
// typed projection over a user-supplied mapping document (TOML or
// YAML) describing project identity, target/flag overrides, ignore
// globs, link role overrides, the namespace, and the packaging flag.
package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/vinzenz/gmake2cmake/internal/diag"
)

// Format is the on-disk representation of the configuration mapping.
type Format int

const (
	// FormatYAML decodes with gopkg.in/yaml.v3.
	FormatYAML Format = iota
	// FormatTOML decodes with github.com/BurntSushi/toml, the same
	// library the teacher's recipe loader uses.
	FormatTOML
)

// DetectFormat infers Format from a file's extension. Defaults to YAML
// for anything unrecognized, matching the Configuration Model's default
// mapping document.
func DetectFormat(path string) Format {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Visibility mirrors CMake's PUBLIC/PRIVATE/INTERFACE keywords.
type Visibility string

const (
	VisibilityPublic    Visibility = "PUBLIC"
	VisibilityPrivate   Visibility = "PRIVATE"
	VisibilityInterface Visibility = "INTERFACE"
)

// LinkClassification forces a library reference's role (spec.md §3,
// §4.4, §4.8).
type LinkClassification string

const (
	ClassificationInternal LinkClassification = "internal"
	ClassificationExternal LinkClassification = "external"
	ClassificationImported LinkClassification = "imported"
)

// TargetMapping renames and overrides a single discovered target
// (spec.md §4.4).
type TargetMapping struct {
	DestName     string
	TypeOverride string
	LinkLibs     []string
	IncludeDirs  []string
	Defines      []string
	Options      []string
	Visibility   Visibility
}

// LinkOverride forces the role of a link reference (spec.md §3, §4.8).
type LinkOverride struct {
	Classification LinkClassification
	Alias          string
	ImportedTarget string
}

// Config is the typed view over the configuration mapping document
// (spec.md §4.4, §6).
type Config struct {
	ProjectName string
	Version     string
	Namespace   string

	Languages []string // explicit; empty means "infer from compiles"

	TargetMappings map[string]TargetMapping
	FlagMappings   map[string]string
	IgnorePaths    []string

	GlobalConfigFiles []string // defaults to {config.mk, rules.mk, defs.mk}

	LinkOverrides map[string]LinkOverride

	PackagingEnabled bool
	Strict           bool
}

// DefaultGlobalConfigFiles is used when the configuration mapping omits
// global_config_files (spec.md §4.4).
var DefaultGlobalConfigFiles = []string{"config.mk", "rules.mk", "defs.mk"}

var identifierCharRe = regexp.MustCompile(`[^A-Za-z0-9_]`)

// SanitizeNamespace strips non-identifier characters from name and
// ensures the result does not start with a digit, per spec.md §4.4's
// namespace-default rule.
func SanitizeNamespace(name string) string {
	s := identifierCharRe.ReplaceAllString(name, "")
	if s == "" {
		return "Project"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	return s
}

// recognizedKeys is the exact key set of spec.md §4.4 / §6.
var recognizedKeys = map[string]struct{}{
	"project_name":        {},
	"version":             {},
	"namespace":           {},
	"languages":           {},
	"target_mappings":     {},
	"flag_mappings":       {},
	"ignore_paths":        {},
	"global_config_files": {},
	"link_overrides":      {},
	"packaging_enabled":   {},
	"strict":              {},
}

// Load decodes a configuration mapping document and returns the typed
// Config plus any schema diagnostics appended to sink. Unrecognized
// keys are WARN (or ERROR under strict, once the strict key itself has
// been read); malformed values are always ERROR (spec.md §4.4, §6).
func Load(data []byte, format Format, sink *diag.Sink) (*Config, error) {
	raw, err := decodeRaw(data, format)
	if err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	return FromMap(raw, sink)
}

func decodeRaw(data []byte, format Format) (map[string]any, error) {
	raw := make(map[string]any)
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	}
	return normalizeKeys(raw), nil
}

// normalizeKeys recursively converts map[any]any nodes (which can
// surface from nested interface-typed values) into map[string]any so
// downstream type assertions are uniform regardless of source format.
func normalizeKeys(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return normalizeKeys(t)
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[fmt.Sprintf("%v", k)] = normalizeValue(vv)
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = normalizeValue(vv)
		}
		return out
	default:
		return v
	}
}

// FromMap builds a Config from an already-decoded mapping, applying
// schema validation the way spec.md §4.4/§6 requires. strict is read
// from the map itself before other keys are validated, since it governs
// whether unknown keys become WARN or ERROR.
func FromMap(raw map[string]any, sink *diag.Sink) (*Config, error) {
	cfg := &Config{
		TargetMappings:    make(map[string]TargetMapping),
		FlagMappings:      make(map[string]string),
		LinkOverrides:     make(map[string]LinkOverride),
		GlobalConfigFiles: append([]string(nil), DefaultGlobalConfigFiles...),
	}

	strict, _ := raw["strict"].(bool)
	cfg.Strict = strict

	unknownSeverity := diag.WARN
	if strict {
		unknownSeverity = diag.ERROR
	}

	for key := range raw {
		if _, ok := recognizedKeys[key]; !ok {
			if sink != nil {
				sink.Add(diag.Diagnostic{
					Severity: unknownSeverity,
					Code:     diag.CodeConfigSchema,
					Message:  fmt.Sprintf("unrecognized configuration key %q", key),
					Origin:   "config",
				})
			}
		}
	}

	if v, ok := raw["project_name"]; ok {
		s, isStr := v.(string)
		if !isStr {
			return nil, schemaErr(sink, "project_name must be a string")
		}
		cfg.ProjectName = s
	}

	if v, ok := raw["version"]; ok {
		s, isStr := v.(string)
		if !isStr {
			return nil, schemaErr(sink, "version must be a string")
		}
		if s != "" {
			if _, err := semver.NewVersion(s); err != nil {
				if sink != nil {
					sink.Add(diag.Diagnostic{
						Severity: diag.WARN,
						Code:     diag.CodeConfigSchema,
						Message:  fmt.Sprintf("version %q is not a valid semantic version: %v", s, err),
						Origin:   "config",
					})
				}
			}
		}
		cfg.Version = s
	}

	if v, ok := raw["namespace"]; ok {
		s, isStr := v.(string)
		if !isStr {
			return nil, schemaErr(sink, "namespace must be a string")
		}
		cfg.Namespace = s
	}
	if cfg.Namespace == "" && cfg.ProjectName != "" {
		cfg.Namespace = SanitizeNamespace(cfg.ProjectName)
	}

	if v, ok := raw["languages"]; ok {
		langs, err := stringSlice(v)
		if err != nil {
			return nil, schemaErr(sink, "languages must be a list of strings: "+err.Error())
		}
		cfg.Languages = langs
	}

	if v, ok := raw["ignore_paths"]; ok {
		paths, err := stringSlice(v)
		if err != nil {
			return nil, schemaErr(sink, "ignore_paths must be a list of strings: "+err.Error())
		}
		cfg.IgnorePaths = paths
	}

	if v, ok := raw["global_config_files"]; ok {
		files, err := stringSlice(v)
		if err != nil {
			return nil, schemaErr(sink, "global_config_files must be a list of strings: "+err.Error())
		}
		cfg.GlobalConfigFiles = files
	}

	if v, ok := raw["packaging_enabled"]; ok {
		b, isBool := v.(bool)
		if !isBool {
			return nil, schemaErr(sink, "packaging_enabled must be a boolean")
		}
		cfg.PackagingEnabled = b
	}

	if v, ok := raw["flag_mappings"]; ok {
		m, err := stringMap(v)
		if err != nil {
			return nil, schemaErr(sink, "flag_mappings must be a string-to-string map: "+err.Error())
		}
		cfg.FlagMappings = m
	}

	if v, ok := raw["target_mappings"]; ok {
		tm, err := parseTargetMappings(v)
		if err != nil {
			return nil, schemaErr(sink, "target_mappings: "+err.Error())
		}
		cfg.TargetMappings = tm
	}

	if v, ok := raw["link_overrides"]; ok {
		lo, err := parseLinkOverrides(v)
		if err != nil {
			return nil, schemaErr(sink, "link_overrides: "+err.Error())
		}
		cfg.LinkOverrides = lo
	}

	return cfg, nil
}

func schemaErr(sink *diag.Sink, msg string) error {
	if sink != nil {
		sink.Add(diag.Diagnostic{Severity: diag.ERROR, Code: diag.CodeConfigSchema, Message: msg, Origin: "config"})
	}
	return fmt.Errorf("%s", msg)
}

func stringSlice(v any) ([]string, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list")
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected string elements")
		}
		out = append(out, s)
	}
	return out, nil
}

func stringMap(v any) (map[string]string, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a mapping")
	}
	out := make(map[string]string, len(m))
	for k, vv := range m {
		s, ok := vv.(string)
		if !ok {
			return nil, fmt.Errorf("expected string value for key %q", k)
		}
		out[k] = s
	}
	return out, nil
}

func parseTargetMappings(v any) (map[string]TargetMapping, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a mapping of target name to override")
	}
	out := make(map[string]TargetMapping, len(m))
	for name, raw := range m {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("entry %q must be a mapping", name)
		}
		var tm TargetMapping
		if s, ok := entry["dest_name"].(string); ok {
			tm.DestName = s
		}
		if s, ok := entry["type_override"].(string); ok {
			tm.TypeOverride = s
		}
		if s, ok := entry["visibility"].(string); ok {
			tm.Visibility = Visibility(s)
		}
		var err error
		if tm.LinkLibs, err = optionalStringSlice(entry["link_libs"]); err != nil {
			return nil, fmt.Errorf("entry %q link_libs: %w", name, err)
		}
		if tm.IncludeDirs, err = optionalStringSlice(entry["include_dirs"]); err != nil {
			return nil, fmt.Errorf("entry %q include_dirs: %w", name, err)
		}
		if tm.Defines, err = optionalStringSlice(entry["defines"]); err != nil {
			return nil, fmt.Errorf("entry %q defines: %w", name, err)
		}
		if tm.Options, err = optionalStringSlice(entry["options"]); err != nil {
			return nil, fmt.Errorf("entry %q options: %w", name, err)
		}
		out[name] = tm
	}
	return out, nil
}

func optionalStringSlice(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	return stringSlice(v)
}

func parseLinkOverrides(v any) (map[string]LinkOverride, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a mapping of link name to override")
	}
	out := make(map[string]LinkOverride, len(m))
	for name, raw := range m {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("entry %q must be a mapping", name)
		}
		var lo LinkOverride
		cls, _ := entry["classification"].(string)
		switch LinkClassification(cls) {
		case ClassificationInternal, ClassificationExternal, ClassificationImported:
			lo.Classification = LinkClassification(cls)
		default:
			return nil, fmt.Errorf("entry %q has invalid classification %q", name, cls)
		}
		if s, ok := entry["alias"].(string); ok {
			lo.Alias = s
		}
		if s, ok := entry["imported_target"].(string); ok {
			lo.ImportedTarget = s
		}
		out[name] = lo
	}
	return out, nil
}

// IsGlobalConfigFile reports whether basename matches one of cfg's
// configured global-config filenames (spec.md §4.7 "project-global
// capture").
func (c *Config) IsGlobalConfigFile(basename string) bool {
	for _, f := range c.GlobalConfigFiles {
		if f == basename {
			return true
		}
	}
	return false
}
