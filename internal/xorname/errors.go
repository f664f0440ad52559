package xorname

import "errors"

var errInvalidLength = errors.New("xorname: decoded value is not 32 bytes")
