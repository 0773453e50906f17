package httpapi

import "errors"

// errInvalidRequest marks request validation failures detected at the
// boundary, such as a missing required field or a malformed ID.
var errInvalidRequest = errors.New("invalid request")
