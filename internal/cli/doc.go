// Package cli parses eolsweep subcommands and their flags into a Command,
// layering flag overrides on top of the configuration file. Process-level
// concerns such as exit codes are expressed through ExitError.
package cli
