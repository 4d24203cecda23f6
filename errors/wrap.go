package errors

import goerrors "errors"

// Re-exports so callers need a single errors import.
var (
	Is     = goerrors.Is
	As     = goerrors.As
	Join   = goerrors.Join
	Unwrap = goerrors.Unwrap
)
