/*
Package domain contains the core model of the Nova action pipeline.
It is free of I/O, scheduling and UI concerns.

# Key Entities

  - ActionContext: ordered key/value bag threaded through one action.
  - ActionKind: name, aliases and Classification of an action type.
  - StepInfo: immutable descriptor of a navigable step.
  - Module: ranked group of steps supplied by the host.
  - NavigationSnapshot: persisted position of a session.
*/
package domain
