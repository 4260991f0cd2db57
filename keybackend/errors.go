package keybackend

import errs "github.com/jmgilman/go/errors"

// ErrKeyNotFound is returned when the access key does not exist in the store.
var ErrKeyNotFound = errs.New(errs.CodeUnauthorized, "access key not found")
