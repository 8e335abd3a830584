package dialogue

import "errors"

var (
	// ErrCollaborator marks a retryable external-call failure (reply
	// generation). Session state is already committed up to the ordering
	// rule, so resubmitting the turn is safe.
	ErrCollaborator = errors.New("collaborator failure")

	// ErrDispatch marks a failed report assembly or delivery. The session
	// stays completed with report_dispatched false, so the next turn
	// retries the handoff with the collected answers intact.
	ErrDispatch = errors.New("report dispatch failure")

	// ErrInvariant marks an internal state breach (cursor out of bounds,
	// unknown phase). The turn is aborted without touching the session.
	ErrInvariant = errors.New("session state invariant violated")
)
