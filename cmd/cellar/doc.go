// Command cellar is the command-line front end for the cellar daemon. It
// records scans, edits wines, uploads label photos, and can run the daemon in
// the foreground.
package main
