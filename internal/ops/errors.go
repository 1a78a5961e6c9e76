package ops

import "errors"

// Sentinel errors. Inference and execution errors wrap one of these.
var (
	ErrUnknownKind = errors.New("unknown op kind")
	ErrArity       = errors.New("invalid arity")
	ErrShape       = errors.New("shape mismatch")
	ErrDType       = errors.New("type mismatch")
	ErrAttrs       = errors.New("invalid op configuration")
	ErrKernel      = errors.New("kernel failure")
)
