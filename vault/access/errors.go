package access

import "errors"

// ErrAccessDenied indicates an authenticated principal is not entitled
// to the resource. It is returned, never silently masked.
var ErrAccessDenied = errors.New("access denied")
