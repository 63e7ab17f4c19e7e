package enrich

import "errors"

// ErrMalformedResponse indicates the classification response could not be
// decoded. The whole batch is dropped: no cache writes, no retry.
var ErrMalformedResponse = errors.New("malformed classification response")
