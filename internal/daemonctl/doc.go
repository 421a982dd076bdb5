// Package daemonctl launches and stops a background cellar daemon process,
// using its HTTP status endpoint to observe readiness and shutdown.
package daemonctl
