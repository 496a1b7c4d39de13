package driven

import "context"

// Authorizer gates workspace access. It is the boundary to the external
// membership/permission system; Calsync only consumes the verdict.
type Authorizer interface {
	// Authorize checks that the presented credential may view or trigger
	// sync for the workspace. Returns domain.ErrCapability when denied.
	Authorize(ctx context.Context, workspaceID, credential string) error
}
