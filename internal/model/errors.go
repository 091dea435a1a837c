package model

import "errors"

var (
	// User related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Token related errors
	ErrInvalidToken   = errors.New("invalid token")
	ErrMalformedToken = errors.New("malformed access token")
	ErrSessionInvalid = errors.New("session invalid")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
