// Package graph renders step sequences as Mermaid flowcharts.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/nova/pkg/domain"
	"github.com/google/uuid"
)

// Overlay contains navigation state to highlight on the graph.
type Overlay struct {
	Visited []uuid.UUID
	Current uuid.UUID
}

// GenerateMermaid produces a Mermaid flowchart of the modules' steps in
// navigation order, one subgraph per module. It applies semantic styling:
// - First step: ((Circle))
// - Parameterized step: [[Subroutine]]
// - Default: [Rectangle]
// Links inside a module are solid; links crossing into the next module are dotted.
func GenerateMermaid(modules []domain.Module, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	ordered := orderModules(modules)
	first := true
	for _, m := range ordered {
		sb.WriteString(fmt.Sprintf("    subgraph %s[\"%s (rank %d)\"]\n", sanitize("m_"+m.Name), quote(m.Name), m.Rank))
		for _, s := range m.Steps {
			opener, closer := "[", "]"
			switch {
			case first:
				opener, closer = "((", "))"
			case len(s.Parameters) > 0:
				opener, closer = "[[", "]]"
			}
			first = false

			label := quote(s.Title)
			if s.ViewKind != "" {
				label = fmt.Sprintf("%s <br/> %s", label, quote(s.ViewKind))
			}
			sb.WriteString(fmt.Sprintf("        %s%s\"%s\"%s\n", nodeID(s.NodeID), opener, label, closer))
		}
		sb.WriteString("    end\n")
	}

	var prev *domain.StepInfo
	var prevModule string
	for _, m := range ordered {
		for i := range m.Steps {
			s := m.Steps[i]
			if prev != nil {
				arrow := "-->"
				if prevModule != m.Name {
					arrow = "-.->"
				}
				sb.WriteString(fmt.Sprintf("    %s %s %s\n", nodeID(prev.NodeID), arrow, nodeID(s.NodeID)))
			}
			prev, prevModule = &s, m.Name
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast on light and dark themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[uuid.UUID]bool)
		for _, id := range overlay.Visited {
			if id == uuid.Nil || seen[id] {
				continue
			}
			seen[id] = true
			sb.WriteString(fmt.Sprintf("    class %s visited;\n", nodeID(id)))
		}
		if overlay.Current != uuid.Nil {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", nodeID(overlay.Current)))
		}
	}

	return sb.String()
}

func orderModules(modules []domain.Module) []domain.Module {
	steps := domain.OrderSteps(modules)
	byFirst := make(map[uuid.UUID]domain.Module, len(modules))
	for _, m := range modules {
		if len(m.Steps) > 0 {
			byFirst[m.Steps[0].NodeID] = m
		}
	}
	out := make([]domain.Module, 0, len(modules))
	for _, s := range steps {
		if m, ok := byFirst[s.NodeID]; ok {
			out = append(out, m)
		}
	}
	return out
}

func nodeID(id uuid.UUID) string {
	return "n_" + strings.ReplaceAll(id.String(), "-", "_")
}

func quote(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitize(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return r.Replace(id)
}
