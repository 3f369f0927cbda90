// Package cli provides the crmguard operator command-line interface.
//
// # Overview
//
// The commands bootstrap a database and let an operator ask the same questions
// the request path asks: does a role grant an action, is a workspace entitled,
// would the full gate admit a user.
//
// # Commands
//
// migrate: Apply pending schema migrations
//
//	crmguard migrate
//
// health: Check the database, schema version and seeded catalogue
//
//	crmguard health
//
// seed: Apply a module, platform role and plan catalogue (the embedded default when -file is omitted)
//
//	crmguard seed -file ./catalogue.yaml
//
// create-workspace / create-user: Bootstrap tenants and accounts
//
//	crmguard create-workspace -name "Acme Realty"
//	crmguard create-user -workspace 1 -role 2 -name "Dana" -email dana@acme.test -password secret1
//
// can: Resolve a role grant
//
//	crmguard can -role 2 -module leads -action edit
//
// entitled: Evaluate a workspace subscription
//
//	crmguard entitled -workspace 1
//
// authorize: Run every gate check for a user
//
//	crmguard authorize -user 7 -workspace 1 -module deals -action delete
//
// audit: Export a workspace audit trail
//
//	crmguard audit -workspace 1 -entity lead -id 42 -format csv
//
// # Configuration
//
// The database and log settings come from CRM_* environment variables, see pkg/config.
package cli
