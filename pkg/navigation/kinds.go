package navigation

import "github.com/aretw0/nova/pkg/domain"

// Standard action kinds. Enter, Leave, Stack and Return also answer to the
// "Navigation" alias, so an OnBeforeNavigation hook observes every step of a
// navigation.
var (
	NavigationKind = domain.NewKind("NavigationAction", domain.Blocking)
	EnterKind      = domain.NewKind("EnterAction", domain.Default, "Navigation")
	LeaveKind      = domain.NewKind("LeaveAction", domain.Default, "Navigation")
	StackKind      = domain.NewKind("StackAction", domain.Blocking|domain.Creational, "Navigation")
	ReturnKind     = domain.NewKind("ReturnAction", domain.Blocking|domain.Terminating, "Navigation")
)
