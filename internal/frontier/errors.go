package frontier

import "errors"

// ErrNotInFlight is returned by Submit when no claim is outstanding.
var ErrNotInFlight = errors.New("submit without an outstanding claim")
