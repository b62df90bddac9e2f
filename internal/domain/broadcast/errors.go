package broadcast

import "errors"

// ErrEmptyUID names the empty-uid failure. The HTTP handler rejects an
// empty uid itself, with a VAL-001 validation problem, before the
// orchestrator is called; no code path returns this error value.
var ErrEmptyUID = errors.New("broadcast: uid must not be empty")
