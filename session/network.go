package session

import (
	"github.com/reef-chain/signerd/netparams"
	"github.com/reef-chain/signerd/subscribe"
)

// CurrentNetwork returns the network the session currently targets.
func (s *State) CurrentNetwork() netparams.Network {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.network
}

// SelectNetwork switches the session to the given network, persisting the
// selection and notifying subscribers. Selecting the already-current network
// is a no-op that still reports the network back.
func (s *State) SelectNetwork(id netparams.NetworkID) (netparams.Network,
	error) {

	network, err := netparams.Get(id)
	if err != nil {
		return netparams.Network{}, err
	}

	s.mtx.Lock()
	if s.network.ID == id {
		s.mtx.Unlock()
		return network, nil
	}
	s.network = network
	s.mtx.Unlock()

	if err := s.cfg.DB.PutNetworkID(string(id)); err != nil {
		return netparams.Network{}, err
	}

	log.Infof("Network switched to %s (%s)", network.Name, network.RPCURL)

	if err := s.netNtfns.SendUpdate(network); err != nil {
		log.Warnf("Unable to publish network update: %v", err)
	}

	return network, nil
}

// SubscribeNetwork registers a subscriber for network changes. The current
// network is returned alongside so subscribers see a value immediately.
func (s *State) SubscribeNetwork() (*subscribe.Client[netparams.Network],
	netparams.Network, error) {

	client, err := s.netNtfns.Subscribe()
	if err != nil {
		return nil, netparams.Network{}, err
	}

	return client, s.CurrentNetwork(), nil
}
