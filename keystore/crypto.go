package keystore

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	// scryptN is the CPU/memory cost parameter for the password KDF.
	scryptN = 32768

	// scryptR is the block size parameter for the password KDF.
	scryptR = 8

	// scryptP is the parallelization parameter for the password KDF.
	scryptP = 1

	// saltLen is the length of the random KDF salt.
	saltLen = 32

	// nonceLen is the length of the secretbox nonce.
	nonceLen = 24

	// keyLen is the length of the derived secretbox key.
	keyLen = 32

	// maxSigningPayload is the longest payload that is signed directly.
	// Anything longer is signed over its blake2b-256 digest, matching the
	// Substrate signing convention.
	maxSigningPayload = 256
)

// encryptedKey is the encrypted-at-rest form of a private key seed.
type encryptedKey struct {
	salt  []byte
	nonce []byte
	box   []byte
}

// deriveKey stretches the password into a secretbox key using scrypt.
func deriveKey(password string, salt []byte) (*[keyLen]byte, error) {
	raw, err := scrypt.Key(
		[]byte(password), salt, scryptN, scryptR, scryptP, keyLen,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to derive key: %w", err)
	}

	var key [keyLen]byte
	copy(key[:], raw)
	return &key, nil
}

// encryptSeed seals the private key seed under the given password using a
// fresh salt and nonce.
func encryptSeed(seed []byte, password string) (*encryptedKey, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	key, err := deriveKey(password, salt)
	if err != nil {
		return nil, err
	}

	var nonce [nonceLen]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}

	box := secretbox.Seal(nil, seed, &nonce, key)

	return &encryptedKey{
		salt:  salt,
		nonce: nonce[:],
		box:   box,
	}, nil
}

// decryptSeed opens the sealed seed with the given password. A failed open
// means the password is wrong.
func (e *encryptedKey) decryptSeed(password string) ([]byte, error) {
	key, err := deriveKey(password, e.salt)
	if err != nil {
		return nil, err
	}

	var nonce [nonceLen]byte
	copy(nonce[:], e.nonce)

	seed, ok := secretbox.Open(nil, e.box, &nonce, key)
	if !ok {
		return nil, ErrInvalidPassword
	}

	return seed, nil
}

// SigningDigest returns the bytes actually signed for the given payload.
// Payloads longer than 256 bytes are reduced to their blake2b-256 digest
// first, as Substrate signers do.
func SigningDigest(payload []byte) []byte {
	if len(payload) > maxSigningPayload {
		digest := blake2b.Sum256(payload)
		return digest[:]
	}

	return payload
}
