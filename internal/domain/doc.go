// Package domain holds the core model types, repository contracts, and
// sentinel errors shared across the service.
package domain
