package main

// Exit codes returned by the CLI.
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (missing env settings, bad field config)
	ExitDataError   = 3 // Data error (record not found, no usable PDF source)
)
