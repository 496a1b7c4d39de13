// Package google implements the remote provider ports against the Google
// Calendar and Google Tasks APIs. Clients are built per sync cycle, bound
// to the access token handed in by the engine, and translate provider
// errors into the domain error taxonomy.
package google
