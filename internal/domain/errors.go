package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration    = errors.New("configuration error")
	ErrStoreUnavailable = errors.New("item store unavailable")
	ErrPassInProgress   = errors.New("reminder pass already in progress")
	ErrNoSubscriptions  = errors.New("no subscriptions found")
)

// StoreError is a read or write failure against the item or subscription
// store. It is transient: the next pass retries implicitly.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func IsTransient(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr)
}
