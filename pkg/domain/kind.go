package domain

import (
	"strings"
)

// Classification tags an action kind with queuing and teardown behaviour.
// Tags combine, e.g. Blocking|Creational.
type Classification uint8

const (
	// Default actions run their Execute phase concurrently with other default actions.
	Default Classification = 0
	// Blocking actions run exclusively for their owner.
	Blocking Classification = 1 << iota
	// Terminating actions dispose the owner's view after ExecuteCompleted.
	Terminating
	// Creational actions mark the owner's view-model initialized after ExecuteCompleted.
	Creational
)

// Has reports whether every tag in other is set on c.
func (c Classification) Has(other Classification) bool {
	return other != Default && c&other == other
}

func (c Classification) String() string {
	if c == Default {
		return "default"
	}
	var parts []string
	if c.Has(Blocking) {
		parts = append(parts, "blocking")
	}
	if c.Has(Terminating) {
		parts = append(parts, "terminating")
	}
	if c.Has(Creational) {
		parts = append(parts, "creational")
	}
	return strings.Join(parts, "|")
}

// actionSuffix is stripped from type names to form canonical names.
const actionSuffix = "Action"

// ActionKind identifies a type of action. Hooks match against Name and Aliases.
type ActionKind struct {
	Name           string
	Aliases        []string
	Classification Classification
}

// NewKind builds a kind from a type name such as "NavigationAction".
// A trailing "Action" is stripped from the name and from every alias.
func NewKind(typeName string, class Classification, aliases ...string) ActionKind {
	k := ActionKind{
		Name:           CanonicalName(typeName),
		Classification: class,
	}
	for _, a := range aliases {
		if a = CanonicalName(a); a != "" {
			k.Aliases = append(k.Aliases, a)
		}
	}
	return k
}

// CanonicalName trims whitespace and a trailing "Action" suffix.
func CanonicalName(name string) string {
	name = strings.TrimSpace(name)
	if trimmed := strings.TrimSuffix(name, actionSuffix); trimmed != "" {
		return trimmed
	}
	return name
}

// Matches reports whether suffix names this kind, case-insensitively.
func (k ActionKind) Matches(suffix string) bool {
	if strings.EqualFold(k.Name, suffix) {
		return true
	}
	for _, a := range k.Aliases {
		if strings.EqualFold(a, suffix) {
			return true
		}
	}
	return false
}

// Is reports whether the kind carries class.
func (k ActionKind) Is(class Classification) bool {
	return k.Classification.Has(class)
}

func (k ActionKind) String() string {
	return k.Name
}
