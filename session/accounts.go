package session

import (
	"github.com/reef-chain/signerd/extwire"
	"github.com/reef-chain/signerd/keystore"
	"github.com/reef-chain/signerd/subscribe"
)

// CreateAccount imports a raw private key (as handed over by the external
// authentication flow), encrypts it under the given password and persists
// the encrypted backup. The derived address is returned.
func (s *State) CreateAccount(name, privateKey, password string) (string,
	error) {

	pair, err := s.cfg.KeyStore.ImportPrivateKey(
		privateKey, password, name,
	)
	if err != nil {
		return "", err
	}

	if err := s.persistAccount(pair); err != nil {
		return "", err
	}

	return pair.Address(), nil
}

// EditAccount renames an account.
func (s *State) EditAccount(address, name string) error {
	err := s.cfg.KeyStore.UpdateMeta(address, func(meta *keystore.Meta) {
		meta.Name = name
	})
	if err != nil {
		return err
	}

	return s.persistAccountByAddress(address)
}

// ForgetAccount removes an account from the store and deletes its persisted
// backup. Any unlock-cache entry is cleared first.
func (s *State) ForgetAccount(address string) error {
	s.unlock.clear(address)

	if err := s.cfg.KeyStore.Forget(address); err != nil {
		return err
	}

	return s.cfg.DB.DeleteAccount(address)
}

// SelectAccount marks the account as the active selection by stamping a
// strictly increasing selection timestamp on its metadata. The currently
// selected account is always the one with the maximum stamp; there is no
// separate "selected" flag to keep in sync.
func (s *State) SelectAccount(address string) error {
	stamp := s.nextSelectionStamp()

	err := s.cfg.KeyStore.UpdateMeta(address, func(meta *keystore.Meta) {
		meta.WhenSelected = stamp
	})
	if err != nil {
		return err
	}

	log.Debugf("Account %s selected (stamp %d)", address, stamp)

	return s.persistAccountByAddress(address)
}

// selectedAddress derives the currently selected account: the one with the
// maximum selection stamp. With no stamps at all it returns "". On equal
// stamps the winner is unspecified; strictly increasing stamps make that
// case unreachable through SelectAccount.
func (s *State) selectedAddress() string {
	var (
		selected string
		maxStamp int64
	)
	for _, pair := range s.cfg.KeyStore.Pairs() {
		if stamp := pair.Meta().WhenSelected; stamp > maxStamp {
			maxStamp = stamp
			selected = pair.Address()
		}
	}

	return selected
}

// Accounts returns the injectable account list: hidden accounts filtered
// out, sorted by creation time, with the selection flag derived from the
// selection stamps.
func (s *State) Accounts() []*extwire.InjectedAccount {
	selected := s.selectedAddress()

	pairs := s.cfg.KeyStore.Pairs()
	accounts := make([]*extwire.InjectedAccount, 0, len(pairs))
	for _, pair := range pairs {
		meta := pair.Meta()
		if meta.IsHidden {
			continue
		}

		accounts = append(accounts, &extwire.InjectedAccount{
			Address:     pair.Address(),
			GenesisHash: meta.GenesisHash,
			Name:        meta.Name,
			Type:        "ed25519",
			IsSelected:  pair.Address() == selected,
		})
	}

	return accounts
}

// SubscribeAccounts registers a subscriber for account list updates and
// returns the current list alongside.
func (s *State) SubscribeAccounts() (
	*subscribe.Client[[]*extwire.InjectedAccount],
	[]*extwire.InjectedAccount, error) {

	client, err := s.acctNtfns.Subscribe()
	if err != nil {
		return nil, nil, err
	}

	return client, s.Accounts(), nil
}

// publishAccounts replays the current account list to all subscribers. It is
// wired as the keystore's change notifier, so every account mutation
// (create, edit, forget, select) flows into the same observable stream.
func (s *State) publishAccounts() {
	if err := s.acctNtfns.SendUpdate(s.Accounts()); err != nil {
		log.Warnf("Unable to publish account update: %v", err)
	}
}

// persistAccountByAddress re-persists the encrypted backup of the account
// after a metadata mutation.
func (s *State) persistAccountByAddress(address string) error {
	pair, err := s.cfg.KeyStore.Pair(address)
	if err != nil {
		return err
	}

	return s.persistAccount(pair)
}

func (s *State) persistAccount(pair *keystore.Pair) error {
	data, err := keystore.EncodePair(pair)
	if err != nil {
		return err
	}

	return s.cfg.DB.PutAccount(pair.Address(), data)
}
