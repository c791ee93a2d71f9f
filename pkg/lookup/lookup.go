// Package lookup defines the boundary between the enrichment engine and the
// external owner-lookup service.
package lookup

import (
	"context"

	"github.com/Sternrassler/owner-enricher/pkg/record"
)

// Outcome classifies a lookup result.
type Outcome string

const (
	// OutcomeSuccess means an owner was identified.
	OutcomeSuccess Outcome = "success"

	// OutcomeNotFound means the service answered but found no owner.
	OutcomeNotFound Outcome = "not_found"

	// OutcomeCredentialError means the service rejected the API credential.
	OutcomeCredentialError Outcome = "credential_error"

	// OutcomeOtherError covers network, timeout, parse and server failures.
	OutcomeOtherError Outcome = "other_error"
)

// Result is the answer for one record.
type Result struct {
	Outcome Outcome

	// Owner is set for OutcomeSuccess.
	Owner record.Enrichment

	// Err carries the cause for OutcomeCredentialError and OutcomeOtherError.
	Err error
}

// Success builds a successful result.
func Success(owner record.Enrichment) Result {
	return Result{Outcome: OutcomeSuccess, Owner: owner}
}

// NotFound builds a not-found result.
func NotFound() Result {
	return Result{Outcome: OutcomeNotFound}
}

// CredentialError builds a credential-failure result.
func CredentialError(err error) Result {
	return Result{Outcome: OutcomeCredentialError, Err: err}
}

// OtherError builds a transient-failure result.
func OtherError(err error) Result {
	return Result{Outcome: OutcomeOtherError, Err: err}
}

// Enrichment returns the fields to merge into the record and whether the
// result should be merged at all.
func (r Result) Enrichment() (record.Enrichment, bool) {
	switch r.Outcome {
	case OutcomeSuccess:
		owner := r.Owner
		if owner.FirstName == "" {
			return record.NotFoundEnrichment(), true
		}
		if owner.Source == "" {
			owner.Source = "Unknown"
		}
		if owner.Confidence == "" {
			owner.Confidence = record.ConfidenceLow
		}
		return owner, true
	case OutcomeNotFound:
		return record.NotFoundEnrichment(), true
	case OutcomeCredentialError:
		return record.CredentialErrorEnrichment(), true
	default:
		return record.Enrichment{}, false
	}
}

// Looker performs one enrichment call. Implementations must be safe for
// concurrent use and must report every failure through the Result rather
// than by panicking.
type Looker interface {
	Lookup(ctx context.Context, r record.Record) Result
}

// Func adapts an ordinary function to the Looker interface.
type Func func(ctx context.Context, r record.Record) Result

// Lookup calls f(ctx, r).
func (f Func) Lookup(ctx context.Context, r record.Record) Result {
	return f(ctx, r)
}
