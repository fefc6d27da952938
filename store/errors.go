package store

import "errors"

var (
	// ErrUsernameConflict is returned by CreateUser when the username is
	// already taken.
	ErrUsernameConflict = errors.New("username already exists")

	// ErrClientConflict is returned by CreateClient when the client id is
	// already taken.
	ErrClientConflict = errors.New("client already exists")

	// ErrRecordNotFound marks an absent row in internal lookups, e.g. the
	// cache-aside token fetch. The models.Model surface still reports
	// not-found as (nil, nil).
	ErrRecordNotFound = errors.New("record not found")
)
