// Package signerdb implements the signer daemon's persistent store: the
// per-origin authorization registry, the known chain metadata registry, the
// network selection and the encrypted account backups. All writes happen
// synchronously on mutation so that an untimely shutdown never loses an
// approval.
package signerdb

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/reef-chain/signerd/extwire"
)

var (
	// authURLBucketName is the bucket holding one record per authorized
	// (or explicitly denied) origin.
	authURLBucketName = []byte("authurls")

	// metadataBucketName is the bucket holding known chain metadata
	// definitions keyed by genesis hash.
	metadataBucketName = []byte("metadata")

	// networkBucketName is the bucket holding the persisted network
	// selection.
	networkBucketName = []byte("network")

	// accountsBucketName is the bucket holding encrypted account backups
	// keyed by address.
	accountsBucketName = []byte("accounts")

	// networkKey is the single key used within the network bucket.
	networkKey = []byte("current")
)

// AuthURLInfo is the persisted authorization record of a single origin. Its
// absence means the origin has never been seen and must prompt.
type AuthURLInfo struct {
	// Origin is the scheme+host+port of the dApp.
	Origin string `json:"origin"`

	// IsAllowed grants or denies gated operations for the origin.
	IsAllowed bool `json:"isAllowed"`

	// AuthorizedAccounts optionally restricts the origin to a whitelist
	// of addresses. Empty means all accounts.
	AuthorizedAccounts []string `json:"authorizedAccounts,omitempty"`

	// LastAuthorized is the unix-millisecond timestamp of the decision.
	LastAuthorized int64 `json:"lastAuthorized"`
}

// DB is the bbolt backed store.
type DB struct {
	*bbolt.DB
}

// Open opens (creating if necessary) the database at the given path and
// ensures all buckets exist.
func Open(path string) (*DB, error) {
	log.Infof("Opening signer database at %v", path)

	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open signer db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{
			authURLBucketName, metadataBucketName,
			networkBucketName, accountsBucketName,
		} {
			_, err := tx.CreateBucketIfNotExists(bucket)
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// PutAuthURL writes the authorization record of a single origin.
func (d *DB) PutAuthURL(info *AuthURLInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}

	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(authURLBucketName).Put(
			[]byte(info.Origin), raw,
		)
	})
}

// DeleteAuthURL removes the record for the given origin, reverting it to
// "never seen".
func (d *DB) DeleteAuthURL(origin string) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(authURLBucketName).Delete([]byte(origin))
	})
}

// FetchAuthURLs loads the full origin -> record map.
func (d *DB) FetchAuthURLs() (map[string]*AuthURLInfo, error) {
	authURLs := make(map[string]*AuthURLInfo)

	err := d.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(authURLBucketName).ForEach(
			func(k, v []byte) error {
				var info AuthURLInfo
				if err := json.Unmarshal(v, &info); err != nil {
					return err
				}

				authURLs[string(k)] = &info
				return nil
			},
		)
	})
	if err != nil {
		return nil, err
	}

	return authURLs, nil
}

// PutMetadata persists a chain metadata definition keyed by genesis hash.
func (d *DB) PutMetadata(def *extwire.MetadataDef) error {
	raw, err := json.Marshal(def)
	if err != nil {
		return err
	}

	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(metadataBucketName).Put(
			[]byte(def.GenesisHash), raw,
		)
	})
}

// FetchMetadata loads the full genesis hash -> definition map.
func (d *DB) FetchMetadata() (map[string]*extwire.MetadataDef, error) {
	defs := make(map[string]*extwire.MetadataDef)

	err := d.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(metadataBucketName).ForEach(
			func(k, v []byte) error {
				var def extwire.MetadataDef
				if err := json.Unmarshal(v, &def); err != nil {
					return err
				}

				defs[string(k)] = &def
				return nil
			},
		)
	})
	if err != nil {
		return nil, err
	}

	return defs, nil
}

// PutNetworkID persists the current network selection.
func (d *DB) PutNetworkID(id string) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(networkBucketName).Put(networkKey, []byte(id))
	})
}

// FetchNetworkID returns the persisted network selection, or an empty string
// if none was stored yet.
func (d *DB) FetchNetworkID() (string, error) {
	var id string
	err := d.View(func(tx *bbolt.Tx) error {
		id = string(tx.Bucket(networkBucketName).Get(networkKey))
		return nil
	})
	if err != nil {
		return "", err
	}

	return id, nil
}

// PutAccount stores the encrypted backup of a single account.
func (d *DB) PutAccount(address string, data []byte) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(accountsBucketName).Put(
			[]byte(address), data,
		)
	})
}

// DeleteAccount removes the backup of a forgotten account.
func (d *DB) DeleteAccount(address string) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(accountsBucketName).Delete([]byte(address))
	})
}

// FetchAccounts returns the encrypted backups of all stored accounts.
func (d *DB) FetchAccounts() ([][]byte, error) {
	var accounts [][]byte

	err := d.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(accountsBucketName).ForEach(
			func(k, v []byte) error {
				data := make([]byte, len(v))
				copy(data, v)
				accounts = append(accounts, data)
				return nil
			},
		)
	})
	if err != nil {
		return nil, err
	}

	return accounts, nil
}
