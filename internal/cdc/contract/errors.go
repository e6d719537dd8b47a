package contract

import "errors"

// ErrSourceTransient marks a capture error as transient (connect/read
// failure): the worker loop logs it and backs off, rather than treating
// it as a fatal misconfiguration.
var ErrSourceTransient = errors.New("cdc: transient source error")

// ErrSerialization marks a payload the source could not parse into a
// Record. The logical and docstream sources skip a single bad event
// without logging it; the worker saves the position checkpoint only for a
// batch that holds at least one record.
var ErrSerialization = errors.New("cdc: record serialization error")
