package core

import (
	"errors"
	"fmt"
)

var (
	// fatal at startup, required settings missing or malformed
	ErrConfig = errors.New("invalid portal configuration")
	// fatal for the whole session
	ErrLogin = errors.New("login failed")

	ErrBadCredentials   = fmt.Errorf("%w: invalid credentials", ErrLogin)
	ErrAccountLocked    = fmt.Errorf("%w: account is locked", ErrLogin)
	ErrLoginUnconfirmed = fmt.Errorf("%w: portal did not confirm the session", ErrLogin)
)
