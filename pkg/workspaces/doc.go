// Package workspaces is the tenant registry: workspaces and their active flag.
//
// Deactivating a workspace blocks logins and entitlement without deleting data.
// Deleting a workspace cascades, at the schema level, to everything it owns.
package workspaces
