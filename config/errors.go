package config

import "errors"

// ErrInvalidConfig is returned when loaded settings fail validation.
// It is fatal at startup.
var ErrInvalidConfig = errors.New("invalid configuration")
