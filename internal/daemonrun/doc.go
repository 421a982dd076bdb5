// Package daemonrun wires configuration, logging, the cellar store, and the
// daemon into a foreground process that runs until interrupted.
package daemonrun
