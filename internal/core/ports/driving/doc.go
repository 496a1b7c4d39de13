// Package driving defines inbound ports: the interfaces through which the
// HTTP API and CLI drive the core services.
package driving
