// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the run lifecycle from rig file to
// finished script, decoupled from any specific entrypoint like a CLI.
package app
