// Package cmd implements the mailsort command line interface.
//
// The CLI provides the following commands:
//   - serve:   run the HTTP API server
//   - worker:  run a classification job worker
//   - version: print the version
package cmd
