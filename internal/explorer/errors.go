package explorer

import "errors"

// Errors returned by the explorer client. Callers match them with errors.Is;
// the wrapped message carries the endpoint URL and the underlying cause.
var (
	// ErrTransport is a network failure or a non-2xx HTTP response.
	ErrTransport = errors.New("explorer transport error")

	// ErrProtocol is a 2xx response whose envelope reports a failure.
	ErrProtocol = errors.New("explorer protocol error")

	// ErrBytecodeNotIndexed means the explorer cannot see code at the address yet.
	// It is retryable by the caller after more confirmations.
	ErrBytecodeNotIndexed = errors.New("contract bytecode not yet indexed by explorer")

	// ErrVerificationRejected is a definitive rejection reported at submission time.
	ErrVerificationRejected = errors.New("explorer could not verify contract")

	// ErrAlreadyVerified is returned by Submit when the explorer already holds verified source.
	ErrAlreadyVerified = errors.New("contract source already verified")

	// ErrStatusUnknown is wrapped into every polling failure: the explorer accepted
	// the submission, so only the observation failed.
	ErrStatusUnknown = errors.New("the verification may still succeed but should be checked manually")
)
