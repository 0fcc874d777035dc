package entities

import "errors"

var ErrStoreEntityNotFound = errors.New("store resource not found")
var ErrMissingAmount = errors.New("missing amount")
var ErrUnknownTxType = errors.New("unknown transaction type")
