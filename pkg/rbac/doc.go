// Package rbac implements the role and module registries, the permission matrix and
// the permission resolver.
//
// # Roles and modules
//
// Roles are either platform roles (no workspace, shared by every tenant) or
// workspace roles. Both live in one table distinguished by a nullable workspace_id.
// Modules are global capability domains such as "leads" or "deals" with unique,
// case-sensitive names.
//
// # Permission matrix
//
// Each (role, module) pair has at most one row holding four independent flags:
// view, create, edit and delete. A missing row means every flag is false.
//
//	perms := store.Permissions()
//	perms.Upsert(ctx, roleID, moduleID, rbac.Flags{CanView: true, CanCreate: true})
//
// Deleting a role removes its grants and the role in one transaction, so no grant
// outlives its role.
//
// # Resolver
//
// Resolver.Can is total for well-formed input: unknown roles, unknown modules,
// missing rows and unset flags all return false. Only a missing role ID or an
// unrecognized action keyword is an error (validation.ErrMalformed).
//
// Resolver.Decide exposes the denial reason for logs, metrics and tests:
//
//	granted | unknown_role | unknown_module | no_grant | flag_false
//
// Callers must not surface the reason to the requester. Super-admins bypass the
// resolver at the call site (see package access); the resolver itself has no
// notion of super-admins.
package rbac
