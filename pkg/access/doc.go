// Package access is the entry point callers use to authorize a workspace action.
//
// Gate.Authorize runs, in order:
//
//  1. the principal must be active
//  2. a workspace principal may only act in its own workspace
//  3. the workspace must be active and entitled (checked concurrently)
//  4. super-admins are allowed at this point
//  5. everyone else needs a grant from the permission resolver
//
// Denials are reported as a Decision, never as an error. The Reason is for
// logs and tests; callers should answer every denial the same way so module
// and role names cannot be probed.
//
//	gate := access.NewGate(rbac.NewResolver(db), billing.NewGuard(billingStore), workspaceStore,
//		access.WithLogger(logger), access.WithMetrics(metrics))
//	ok, err := gate.Allowed(ctx, access.Request{
//		Principal:   access.PrincipalFromUser(user),
//		WorkspaceID: wsID,
//		Module:      "leads",
//		Action:      rbac.ActionEdit,
//	})
package access
