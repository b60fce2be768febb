// Package errors defines the error taxonomy shared by both sides of the
// plugin boundary.
//
// Errors never cross the boundary as traps or aborts: a failing entry
// point hands the host a pointer to the rendered message, and the host
// parses it back into a Kind with FromMessage. The rendered strings are
// therefore stable wire text, not free-form prose.
package errors
