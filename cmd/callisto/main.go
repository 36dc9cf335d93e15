// Callisto is a resilience and observability gateway for generative AI
// API calls.
//
// It sits between application code and a rate-limited remote API,
// providing:
//   - Encrypted credential storage and rotating key selection
//   - Bounded TTL response caching
//   - Retry with exponential backoff and per-attempt timeouts
//   - Call interception with persistent audit records
//   - Rolling-window usage metrics and threshold alerting
//
// Usage:
//
//	# Start the gateway with default configuration
//	callisto run
//
//	# Start with a custom configuration file
//	callisto run --config /etc/callisto/config.yaml
//
//	# Validate configuration without starting
//	callisto run --dry-run
//
//	# Manage pool credentials
//	callisto keys add --name primary
//	callisto keys list
//
//	# Show version information
//	callisto version
package main

func main() {
	Execute()
}
