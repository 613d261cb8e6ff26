// Package id provides unique identifier generation for render jobs.
package id

import (
	"github.com/google/uuid"
)

// Prefix starts every job ID.
const Prefix = "job-"

// Generate creates a new unique job ID. IDs are safe to use as a single path
// element, which is how scratch directories are named.
// Format: job-<uuid>
// Example: job-8c0f4a52-7f0e-4b7b-9f4e-1d2c3b4a5e6f
func Generate() string {
	return Prefix + uuid.NewString()
}
