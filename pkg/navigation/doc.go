// Package navigation drives linked step sequences, wizards stacked over them
// and the session that owns both.
//
// Sequence state (current step and back-stack) is only mutated on the
// affinity dispatcher. Operations that wait for actions, such as DoStep or
// Session.Navigate, block their caller and must therefore never be called on
// the affinity thread itself. Calling them from an action's Execute phase is
// fine: Execute runs on a worker.
package navigation
