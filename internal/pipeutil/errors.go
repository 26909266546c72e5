package pipeutil

import "errors"

// ErrCancelled is the sentinel terminal status for a cooperatively
// cancelled run (§5, §7 taxonomy item 6) — distinct from a generic
// failure so callers can tell "the operator asked us to stop" from
// "something broke".
var ErrCancelled = errors.New("cancelled")
