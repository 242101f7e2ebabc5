// Package netparams defines the Reef networks the signer daemon can target.
package netparams

import "fmt"

// NetworkID identifies one of the supported Reef networks.
type NetworkID string

const (
	// Mainnet is the production Reef network.
	Mainnet NetworkID = "mainnet"

	// Testnet is the Reef Scuba test network.
	Testnet NetworkID = "testnet"
)

// Network describes a single Reef network endpoint.
type Network struct {
	// ID is the short network identifier.
	ID NetworkID `json:"id"`

	// Name is the human readable network name.
	Name string `json:"name"`

	// RPCURL is the websocket RPC endpoint of the network.
	RPCURL string `json:"rpcUrl"`

	// ReefScanURL is the block explorer for the network.
	ReefScanURL string `json:"reefScanUrl"`

	// GenesisHash is the hex-encoded hash of the network's genesis block.
	GenesisHash string `json:"genesisHash"`
}

// ReefMainnet holds the parameters of the production Reef network.
var ReefMainnet = Network{
	ID:          Mainnet,
	Name:        "Reef Mainnet",
	RPCURL:      "wss://rpc.reefscan.com/ws",
	ReefScanURL: "https://reefscan.com",
	GenesisHash: "0x7834781d38e4798d548e34ec947d19deea29df148a7bf32484b7b24dacf8d4b7",
}

// ReefTestnet holds the parameters of the Reef Scuba test network.
var ReefTestnet = Network{
	ID:          Testnet,
	Name:        "Reef Scuba (testnet)",
	RPCURL:      "wss://rpc-testnet.reefscan.com/ws",
	ReefScanURL: "https://testnet.reefscan.com",
	GenesisHash: "0xb414a8602b2251fa538d38a9322391500bd0324bc7ac6048845d57c37dd83fe6",
}

// DefaultNetwork is the network targeted when no selection has been
// persisted yet.
var DefaultNetwork = ReefMainnet

// Get returns the network parameters for the given identifier.
func Get(id NetworkID) (Network, error) {
	switch id {
	case Mainnet:
		return ReefMainnet, nil
	case Testnet:
		return ReefTestnet, nil
	default:
		return Network{}, fmt.Errorf("unknown network: %v", id)
	}
}
