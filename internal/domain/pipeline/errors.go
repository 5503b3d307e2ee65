package pipeline

import "errors"

// Error taxonomy of the sync pipeline. Transient upstream errors are retried
// locally; once a retry budget is exhausted the error is recorded on the
// owning entity (envelope attempts / task status + last_error) instead of
// being raised further.
var (
	// ErrSignatureMismatch indicates a webhook delivery whose HMAC signature
	// did not match the configured secret.
	ErrSignatureMismatch = errors.New("pipeline: webhook signature mismatch")

	// ErrInvalidPayload indicates a malformed or schema-violating webhook body.
	ErrInvalidPayload = errors.New("pipeline: invalid webhook payload")

	// ErrUpstreamUnavailable indicates the source system stayed throttled or
	// unreachable after the retry budget was exhausted.
	ErrUpstreamUnavailable = errors.New("pipeline: upstream unavailable")

	// ErrCredentialsMissing indicates target-system credentials have not been
	// configured.
	ErrCredentialsMissing = errors.New("pipeline: target credentials missing")

	// ErrMappingFailed indicates at least one sub-entity mapping call failed.
	// Mapping is all-or-nothing: no partial mapping list is ever returned.
	ErrMappingFailed = errors.New("pipeline: auto-mapping failed")

	// ErrUpsertFailed indicates the target upsert exhausted its retry budget.
	ErrUpsertFailed = errors.New("pipeline: target upsert failed")

	// ErrStagingMissing indicates a task past its attempt ceiling has no
	// staging record. This is a logic invariant violation, not an expected
	// runtime condition.
	ErrStagingMissing = errors.New("pipeline: staging record missing")

	// ErrTaskNotFound indicates a replay/retry action referenced an unknown
	// sync task.
	ErrTaskNotFound = errors.New("pipeline: sync task not found")

	// ErrStagingNotFound indicates no staging record exists for a source GUID.
	ErrStagingNotFound = errors.New("pipeline: staging record not found")
)
