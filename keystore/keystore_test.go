package keystore

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

var (
	testSeed = bytes.Repeat([]byte{0x42}, ed25519.SeedSize)

	testPassword = "correct horse"
)

func newTestStore(t *testing.T) (*Store, *Pair) {
	t.Helper()

	store := NewStore(clock.NewTestClock(time.Unix(1700000000, 0)))
	pair, err := store.ImportPrivateKey(
		hex.EncodeToString(testSeed), testPassword, "test account",
	)
	require.NoError(t, err)

	return store, pair
}

// TestImportPrivateKey tests importing a raw seed and the derived address.
func TestImportPrivateKey(t *testing.T) {
	store, pair := newTestStore(t)

	priv := ed25519.NewKeyFromSeed(testSeed)
	expectedAddr := "0x" + hex.EncodeToString(
		priv.Public().(ed25519.PublicKey),
	)
	require.Equal(t, expectedAddr, pair.Address())

	// Importing again must fail with an address collision.
	_, err := store.ImportPrivateKey(
		hex.EncodeToString(testSeed), testPassword, "dupe",
	)
	require.ErrorIs(t, err, ErrAddressCollision)

	// An unknown address must fail lookup.
	_, err = store.Pair("0xdeadbeef")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

// TestUnlockWrongPassword tests that a bad password does not unlock the pair.
func TestUnlockWrongPassword(t *testing.T) {
	_, pair := newTestStore(t)

	require.True(t, pair.Locked())
	require.ErrorIs(t, pair.Unlock("not the password"),
		ErrInvalidPassword)
	require.True(t, pair.Locked())

	require.NoError(t, pair.Unlock(testPassword))
	require.False(t, pair.Locked())

	pair.Lock()
	require.True(t, pair.Locked())
}

// TestSignAndVerify tests the signing path for short payloads (signed
// directly) and long payloads (signed over the blake2b-256 digest).
func TestSignAndVerify(t *testing.T) {
	_, pair := newTestStore(t)

	payload := []byte("short payload")

	// Signing while locked must fail.
	_, err := pair.Sign(payload)
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, pair.Unlock(testPassword))

	sig, err := pair.Sign(payload)
	require.NoError(t, err)
	require.True(t, pair.Verify(payload, sig))

	// Long payloads are pre-hashed with blake2b-256.
	long := bytes.Repeat([]byte{0xaa}, 300)
	sig, err = pair.Sign(long)
	require.NoError(t, err)

	digest := blake2b.Sum256(long)
	priv := ed25519.NewKeyFromSeed(testSeed)
	require.True(t, ed25519.Verify(
		priv.Public().(ed25519.PublicKey), digest[:], sig,
	))
	require.True(t, pair.Verify(long, sig))
}

// TestEncodeRestore tests that an encoded pair round-trips through storage
// and comes back locked but unlockable with the original password.
func TestEncodeRestore(t *testing.T) {
	store, pair := newTestStore(t)

	require.NoError(t, store.UpdateMeta(
		pair.Address(), func(meta *Meta) {
			meta.WhenSelected = 123456
		},
	))

	data, err := EncodePair(pair)
	require.NoError(t, err)
	require.NotContains(t, string(data), hex.EncodeToString(testSeed))

	restored := NewStore(clock.NewTestClock(time.Unix(1700000000, 0)))
	require.NoError(t, restored.AddEncoded(data))

	restoredPair, err := restored.Pair(pair.Address())
	require.NoError(t, err)
	require.True(t, restoredPair.Locked())
	require.Equal(t, int64(123456), restoredPair.Meta().WhenSelected)
	require.NoError(t, restoredPair.Unlock(testPassword))
}

// TestStoreNotifier tests that mutations fire the change notifier.
func TestStoreNotifier(t *testing.T) {
	store, pair := newTestStore(t)

	var fired int
	store.SetNotifier(func() { fired++ })

	require.NoError(t, store.UpdateMeta(
		pair.Address(), func(meta *Meta) {
			meta.Name = "renamed"
		},
	))
	require.Equal(t, 1, fired)

	require.NoError(t, store.Forget(pair.Address()))
	require.Equal(t, 2, fired)
	require.Empty(t, store.Pairs())
}
