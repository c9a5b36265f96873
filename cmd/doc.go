// Package cmd implements the command-line interface for cachemgrd, the
// external cache-manager server core. It has two subcommands: serve,
// which starts the event loop against the reference in-memory backend,
// and version, which prints the version number.
package cmd
