// Package seed bootstraps the platform catalogue: modules, platform roles with
// their grants, and billing plans. Catalogues are YAML; a default one is
// embedded in the binary.
package seed
