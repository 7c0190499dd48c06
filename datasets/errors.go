package datasets

import "errors"

// ErrDatasetLoad is wrapped by every failure to read or validate a reference
// source. Callers should treat it as fatal for initialization.
var ErrDatasetLoad = errors.New("dataset load error")
