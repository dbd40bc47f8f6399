package security

import "errors"

var (
	ErrSecretKeyEmpty   = errors.New("security: secret key is empty")
	ErrAlgorithmInvalid = errors.New("security: invalid algorithm")
	ErrTokenMissing     = errors.New("security: token is missing")
	ErrTokenInvalid     = errors.New("security: token is invalid")
	ErrTokenExpired     = errors.New("security: token has expired")
	ErrTokenNotValidYet = errors.New("security: token is not valid yet")
	ErrTokenMalformed   = errors.New("security: token is malformed")
	ErrSubjectMissing   = errors.New("security: token has no user id")
)
