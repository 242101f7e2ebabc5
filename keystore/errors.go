package keystore

import "errors"

var (
	// ErrKeyNotFound is returned when no key pair is known for the
	// requested address.
	ErrKeyNotFound = errors.New("unable to find key pair for address")

	// ErrInvalidPassword is returned when the supplied password does not
	// decrypt the stored private key.
	ErrInvalidPassword = errors.New("invalid password supplied")

	// ErrLocked is returned when a signing operation is attempted on a
	// locked key pair.
	ErrLocked = errors.New("key pair is locked")

	// ErrAddressCollision is returned when importing a key whose address
	// is already present in the store.
	ErrAddressCollision = errors.New("address already present in store")
)
