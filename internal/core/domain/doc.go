// Package domain contains the core business entities for the Calsync
// engine: integration accounts, mirrored calendar events and tasks, and
// the error taxonomy shared across services and adapters.
//
// Domain types have no dependencies on adapters or external libraries.
package domain
