// Package driven defines outbound ports: interfaces the core services
// depend on and adapters implement (persistence, the remote provider API,
// OAuth exchange, workspace authorization).
package driven
