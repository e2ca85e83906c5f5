package domain

import "errors"

// ErrNoBars means no usable OHLC data exists for a symbol.
var ErrNoBars = errors.New("no bars")
