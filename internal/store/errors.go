package store

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidShape = errors.New("invalid atom shape")
)
