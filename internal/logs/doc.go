// Package logs reads the daemon log file for `cellar logs`.
//
// Last returns the final N lines with bounded memory, ReadFrom continues from
// a byte offset, and Follow polls for appended lines until its context ends.
// Filter narrows JSON log lines by level, component, or wine.
package logs
