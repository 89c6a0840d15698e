// Aegis is a semantic policy enforcement service for autonomous agents.
//
// It evaluates agent intents against installed policy rules using
// vector similarity and returns allow/block decisions, backed by a
// three-tier rule store (in-memory cache, binary snapshot, SQLite).
//
// Usage:
//
//	# Start the enforcement server with default configuration
//	aegis run
//
//	# Start with a custom configuration file
//	aegis run --config /etc/aegis/config.yaml
//
//	# Validate a configuration file without starting
//	aegis validate --config /etc/aegis/config.yaml
//
//	# Show version information
//	aegis version
package main

func main() {
	Execute()
}
