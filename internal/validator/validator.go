// Package validator checks module descriptors before a shell is seeded with them.
package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/nova/pkg/domain"
	"github.com/google/uuid"
)

// ValidateModules checks that modules can seed a step sequence: at least one
// step overall, named modules without duplicates, titled steps with a view
// kind, and node ids unique across all modules.
func ValidateModules(modules []domain.Module) error {
	var errors []string

	if len(modules) == 0 {
		errors = append(errors, "no modules defined")
	}

	names := make(map[string]bool)
	nodes := make(map[uuid.UUID]string)

	for i, m := range modules {
		label := m.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i)
			errors = append(errors, fmt.Sprintf("module %s has no name", label))
		} else if names[m.Name] {
			errors = append(errors, fmt.Sprintf("module '%s' is defined twice", m.Name))
		}
		names[m.Name] = true

		if len(m.Steps) == 0 {
			errors = append(errors, fmt.Sprintf("module '%s' has no steps", label))
		}

		for j, s := range m.Steps {
			where := fmt.Sprintf("module '%s' step %d", label, j)
			if s.Title != "" {
				where = fmt.Sprintf("module '%s' step '%s'", label, s.Title)
			} else {
				errors = append(errors, fmt.Sprintf("%s has no title", where))
			}
			if s.ViewKind == "" {
				errors = append(errors, fmt.Sprintf("%s has no view kind", where))
			}
			if s.NodeID == uuid.Nil {
				errors = append(errors, fmt.Sprintf("%s has no node id", where))
				continue
			}
			if prev, dup := nodes[s.NodeID]; dup {
				errors = append(errors, fmt.Sprintf("%s reuses node id %s of %s", where, s.NodeID, prev))
				continue
			}
			nodes[s.NodeID] = where
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("found %d errors:\n- %s", len(errors), strings.Join(errors, "\n- "))
	}
	return nil
}
