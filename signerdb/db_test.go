package signerdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reef-chain/signerd/extwire"
)

func openTestDB(t *testing.T, path string) *DB {
	t.Helper()

	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	return db
}

// TestAuthURLPersistence tests that origin records survive a close/reopen
// cycle and that deletion reverts an origin to "never seen".
func TestAuthURLPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signer.db")

	db, err := Open(path)
	require.NoError(t, err)

	info := &AuthURLInfo{
		Origin:         "https://dapp.example",
		IsAllowed:      true,
		LastAuthorized: 1700000000000,
	}
	require.NoError(t, db.PutAuthURL(info))
	require.NoError(t, db.Close())

	// Reopen and verify the record survived.
	db = openTestDB(t, path)

	authURLs, err := db.FetchAuthURLs()
	require.NoError(t, err)
	require.Len(t, authURLs, 1)
	require.Equal(t, info, authURLs["https://dapp.example"])

	// Flipping the flag overwrites in place.
	info.IsAllowed = false
	require.NoError(t, db.PutAuthURL(info))

	authURLs, err = db.FetchAuthURLs()
	require.NoError(t, err)
	require.False(t, authURLs["https://dapp.example"].IsAllowed)

	// Deletion reverts to never seen.
	require.NoError(t, db.DeleteAuthURL("https://dapp.example"))

	authURLs, err = db.FetchAuthURLs()
	require.NoError(t, err)
	require.Empty(t, authURLs)
}

// TestMetadataPersistence tests the known-metadata registry round trip.
func TestMetadataPersistence(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "signer.db"))

	def := &extwire.MetadataDef{
		Chain:         "Reef Mainnet",
		GenesisHash:   "0x7834",
		SS58Format:    42,
		SpecVersion:   8,
		TokenDecimals: 18,
		TokenSymbol:   "REEF",
	}
	require.NoError(t, db.PutMetadata(def))

	defs, err := db.FetchMetadata()
	require.NoError(t, err)
	require.Len(t, defs, 1)
	require.Equal(t, def, defs["0x7834"])

	// Same genesis hash overwrites (append-mostly registry).
	def.SpecVersion = 9
	require.NoError(t, db.PutMetadata(def))

	defs, err = db.FetchMetadata()
	require.NoError(t, err)
	require.Len(t, defs, 1)
	require.Equal(t, 9, defs["0x7834"].SpecVersion)
}

// TestNetworkSelection tests the persisted network scalar.
func TestNetworkSelection(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "signer.db"))

	id, err := db.FetchNetworkID()
	require.NoError(t, err)
	require.Empty(t, id)

	require.NoError(t, db.PutNetworkID("testnet"))

	id, err = db.FetchNetworkID()
	require.NoError(t, err)
	require.Equal(t, "testnet", id)
}

// TestAccountBackups tests storing and deleting encrypted account backups.
func TestAccountBackups(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "signer.db"))

	require.NoError(t, db.PutAccount("0xaa", []byte(`{"address":"0xaa"}`)))
	require.NoError(t, db.PutAccount("0xbb", []byte(`{"address":"0xbb"}`)))

	accounts, err := db.FetchAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	require.NoError(t, db.DeleteAccount("0xaa"))

	accounts, err = db.FetchAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	require.JSONEq(t, `{"address":"0xbb"}`, string(accounts[0]))
}
