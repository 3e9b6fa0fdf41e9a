package script

import (
	"embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// BuiltinName is the script used when no path is configured.
const BuiltinName = "vita"

// LoadScript reads a script from disk.
func LoadScript(path string) (*Script, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("script path is required")
	}
	slog.Debug("script.LoadScript invoked", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	s.Source = path
	slog.Debug("script.LoadScript succeeded", "path", path, "name", s.Name, "scenes", len(s.Scenes), "steps", len(s.Steps))
	return s, nil
}

// LoadBuiltin returns a script bundled with the binary.
func LoadBuiltin(name string) (*Script, error) {
	data, err := builtinFS.ReadFile("builtin/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("read builtin script %s: %w", name, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse builtin script %s: %w", name, err)
	}
	s.Source = "builtin"
	return s, nil
}

// Load reads path, or the builtin script when path is empty.
func Load(path string) (*Script, error) {
	if strings.TrimSpace(path) == "" {
		return LoadBuiltin(BuiltinName)
	}
	return LoadScript(path)
}

// Parse decodes and normalizes a YAML script. Table invariants are checked
// later, by Config.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}

	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return nil, fmt.Errorf("script name is required")
	}
	s.Description = strings.TrimSpace(s.Description)
	if s.SettleMS != nil && *s.SettleMS < 0 {
		return nil, fmt.Errorf("settle_ms must not be negative")
	}
	if len(s.Scenes) == 0 {
		return nil, fmt.Errorf("script scenes are required")
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("script steps are required")
	}

	for i := range s.Scenes {
		sc := &s.Scenes[i]
		sc.Tag = strings.TrimSpace(sc.Tag)
		if sc.Tag == "" {
			return nil, fmt.Errorf("scene %d: tag is required", i)
		}
	}
	for i := range s.Steps {
		st := &s.Steps[i]
		st.Kind = strings.ToLower(strings.TrimSpace(st.Kind))
		for j, opt := range st.Options {
			st.Options[j] = strings.TrimSpace(opt)
		}
	}
	return &s, nil
}
