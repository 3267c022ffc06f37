// Package repository persists and queries account records. Sentinel
// errors defined here let higher layers such as handlers distinguish
// failure scenarios without inspecting driver-specific errors: for
// example ErrUsernameTaken signals the unique-username constraint and
// maps to an HTTP 400 on signup.
package repository

import "errors"

// ErrUsernameTaken is returned when an insert violates the unique
// username constraint.
var ErrUsernameTaken = errors.New("username already exists")
