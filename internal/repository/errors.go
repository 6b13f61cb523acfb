package repository

import "errors"

// ErrNotFound the addressed row does not exist
var ErrNotFound = errors.New("record not found")
