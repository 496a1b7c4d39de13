// Package auth provides Authorizer adapters for the workspace gate.
// Workspace membership lives in an external system; these adapters only
// produce a verdict.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/custodia-labs/calsync/internal/core/domain"
	"github.com/custodia-labs/calsync/internal/core/ports/driven"
)

// StaticAuthorizer grants access to every workspace when the presented
// credential matches a single shared token. An empty configured token
// disables the gate entirely, for local single-user runs.
type StaticAuthorizer struct {
	token string
}

var _ driven.Authorizer = (*StaticAuthorizer)(nil)

// NewStaticAuthorizer creates an authorizer around a shared token.
func NewStaticAuthorizer(token string) *StaticAuthorizer {
	return &StaticAuthorizer{token: token}
}

// Authorize checks the credential against the configured token.
func (a *StaticAuthorizer) Authorize(_ context.Context, workspaceID, credential string) error {
	if a.token == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(credential), []byte(a.token)) != 1 {
		return fmt.Errorf("%w: not authorized for workspace %s", domain.ErrCapability, workspaceID)
	}
	return nil
}
