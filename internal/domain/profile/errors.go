package profile

import "errors"

// ErrMalformedProfile is returned for documents that fail to parse or
// validate. Callers never see a partially decoded profile.
var ErrMalformedProfile = errors.New("malformed profile")
