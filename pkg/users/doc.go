// Package users stores identity records: who a principal is, which role they
// hold and which workspace (if any) they belong to.
//
// Password hashing is delegated to a PasswordHasher; BcryptHasher is the
// production implementation. Records carry the hash, so always pass them
// through Sanitize before they are logged or sent to a client.
//
//	store := users.NewStore(db, rbac.NewStore(db), users.NewBcryptHasher(cfg.Security.BcryptCost))
//	user, err := store.Authenticate(ctx, email, password)
//	if errors.Is(err, users.ErrInvalidCredentials) {
//		// same answer for unknown email, wrong password and inactive accounts
//	}
package users
