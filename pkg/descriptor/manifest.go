package descriptor

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/aretw0/nova/internal/validator"
	"github.com/aretw0/nova/pkg/domain"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// stepNamespace scopes derived node ids.
var stepNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/aretw0/nova/steps"))

// Manifest is the raw document shape.
type Manifest struct {
	Modules []ModuleSpec `mapstructure:"modules"`
}

// ModuleSpec is one module entry of a manifest.
type ModuleSpec struct {
	Name  string     `mapstructure:"name"`
	Rank  int        `mapstructure:"rank"`
	Steps []StepSpec `mapstructure:"steps"`
}

// StepSpec is one step entry of a manifest.
type StepSpec struct {
	ID         string         `mapstructure:"id"`
	Title      string         `mapstructure:"title"`
	View       string         `mapstructure:"view"`
	ViewModel  string         `mapstructure:"viewmodel"`
	Parameters map[string]any `mapstructure:"parameters"`
	// Forward lists parameter keys marked forwardable.
	Forward []string `mapstructure:"forward"`
}

// Parse decodes and validates a manifest. JSON is accepted as YAML.
func Parse(data []byte) ([]domain.Module, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	var m Manifest
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &m,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}

	modules, err := toDomain(m.Modules)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateModules(modules); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return modules, nil
}

// ParseFile reads and parses a manifest file.
func ParseFile(path string) ([]domain.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	return Parse(data)
}

// NodeID maps a manifest id to a node id. UUIDs are kept; anything else,
// including an empty id, becomes a SHA-1 UUID of "module/id" or
// "module/title".
func NodeID(module, id, title string) uuid.UUID {
	if id != "" {
		if parsed, err := uuid.Parse(id); err == nil {
			return parsed
		}
		return uuid.NewSHA1(stepNamespace, []byte(module+"/"+id))
	}
	return uuid.NewSHA1(stepNamespace, []byte(module+"/"+title))
}

func toDomain(specs []ModuleSpec) ([]domain.Module, error) {
	modules := make([]domain.Module, 0, len(specs))
	for _, ms := range specs {
		mod := domain.Module{Name: ms.Name, Rank: ms.Rank}
		for _, ss := range ms.Steps {
			params, err := ss.entries()
			if err != nil {
				return nil, fmt.Errorf("module '%s' step '%s': %w", ms.Name, ss.Title, err)
			}
			mod.Steps = append(mod.Steps, domain.StepInfo{
				NodeID:        NodeID(ms.Name, ss.ID, ss.Title),
				Title:         ss.Title,
				ViewKind:      ss.View,
				ViewModelKind: ss.ViewModel,
				Parameters:    params,
			})
		}
		modules = append(modules, mod)
	}
	return modules, nil
}

// entries sorts parameters by key so the order is stable across decodes.
func (s StepSpec) entries() ([]domain.Entry, error) {
	forward := make(map[string]bool, len(s.Forward))
	for _, k := range s.Forward {
		if _, ok := s.Parameters[k]; !ok {
			return nil, fmt.Errorf("forward names unknown parameter %q", k)
		}
		forward[k] = true
	}

	keys := make([]string, 0, len(s.Parameters))
	for k := range s.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]domain.Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, domain.NewEntry(k, s.Parameters[k], forward[k]))
	}
	return out, nil
}

// File is a ports.DescriptorSource reading a manifest on every call.
type File struct {
	Path string
}

// Modules implements ports.DescriptorSource.
func (f File) Modules(ctx context.Context) ([]domain.Module, error) {
	return ParseFile(f.Path)
}

// Static is a ports.DescriptorSource over a fixed module list.
type Static []domain.Module

// Modules implements ports.DescriptorSource.
func (s Static) Modules(ctx context.Context) ([]domain.Module, error) {
	return append([]domain.Module(nil), s...), nil
}
