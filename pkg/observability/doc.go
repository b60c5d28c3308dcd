/*
Package observability provides lifecycle hook sets for monitoring the action
pipeline: structured logging of flow transitions and step changes, and
fan-out of several hook sets to one shell.
*/
package observability
