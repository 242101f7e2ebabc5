package extwire

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// RequestAuthorizeTab is the payload of pub(authorize.tab): a dApp asking to
// be authorized for account access.
type RequestAuthorizeTab struct {
	// Origin is the dApp supplied display name. The trusted origin used
	// for gating is always taken from the transport, never from here.
	Origin string `json:"origin"`
}

// RequestAccountList is the payload of pub(accounts.list).
type RequestAccountList struct {
	// AnyType includes accounts of every key type instead of only
	// derivable ones.
	AnyType bool `json:"anyType,omitempty"`
}

// RequestAccountCreateSuri is the payload of pri(accounts.create.suri): a
// raw private key handed over by the external authentication flow.
type RequestAccountCreateSuri struct {
	Name       string `json:"name"`
	PrivateKey string `json:"privateKey"`
	Password   string `json:"password"`
}

// RequestAccountEdit is the payload of pri(accounts.edit).
type RequestAccountEdit struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// RequestAccountForget is the payload of pri(accounts.forget).
type RequestAccountForget struct {
	Address string `json:"address"`
}

// RequestAccountSelect is the payload of pri(accounts.select).
type RequestAccountSelect struct {
	Address string `json:"address"`
}

// InjectedAccount is a single entry of the account list injected into dApps.
type InjectedAccount struct {
	Address     string `json:"address"`
	GenesisHash string `json:"genesisHash,omitempty"`
	Name        string `json:"name,omitempty"`
	Type        string `json:"type,omitempty"`
	IsSelected  bool   `json:"isSelected,omitempty"`
}

// RequestAuthorizeApprove is the payload of pri(authorize.approve).
type RequestAuthorizeApprove struct {
	ID string `json:"id"`

	// AuthorizedAccounts optionally restricts the origin to a whitelist
	// of addresses. Empty means all accounts.
	AuthorizedAccounts []string `json:"authorizedAccounts,omitempty"`
}

// RequestID is the payload of every operation addressing a pending request
// by id alone (reject, cancel, isLocked, metadata approve/reject).
type RequestID struct {
	ID string `json:"id"`
}

// RequestAuthorizedOrigin is the payload of pri(authorize.toggle) and
// pri(authorize.remove).
type RequestAuthorizedOrigin struct {
	Origin string `json:"origin"`
}

// MetadataDef is a chain metadata definition a dApp offers to the extension.
type MetadataDef struct {
	Chain       string `json:"chain"`
	GenesisHash string `json:"genesisHash"`
	Icon        string `json:"icon,omitempty"`
	SS58Format  int    `json:"ss58Format"`
	ChainType   string `json:"chainType,omitempty"`
	SpecVersion int    `json:"specVersion"`
	TokenDecimals int  `json:"tokenDecimals"`
	TokenSymbol string `json:"tokenSymbol"`
	Types       map[string]interface{} `json:"types,omitempty"`
}

// InjectedMetadataKnown is the trimmed metadata view returned to dApps by
// pub(metadata.list).
type InjectedMetadataKnown struct {
	GenesisHash string `json:"genesisHash"`
	SpecVersion int    `json:"specVersion"`
}

// RequestNetworkSelect is the payload of pri(network.select).
type RequestNetworkSelect struct {
	ID string `json:"id"`
}

// RequestSigningApprove is the payload of pri(signing.approve).
type RequestSigningApprove struct {
	ID           string `json:"id"`
	Password     string `json:"password,omitempty"`
	SavePassword bool   `json:"savePassword,omitempty"`
}

// ResponseSigningIsLocked is the reply to pri(signing.isLocked).
type ResponseSigningIsLocked struct {
	IsLocked bool `json:"isLocked"`

	// RemainingTime is the unlock-cache time left in milliseconds.
	RemainingTime int64 `json:"remainingTime"`
}

// SignatureResult is the terminal outcome of an approved signing request.
type SignatureResult struct {
	ID string `json:"id"`

	// Signature is the 0x-prefixed hex encoded signature.
	Signature string `json:"signature"`
}

// SignerPayloadJSON is a structured extrinsic signing payload, mirroring the
// Substrate signer interface. All hash and data fields are 0x-prefixed hex.
type SignerPayloadJSON struct {
	Address            string   `json:"address"`
	BlockHash          string   `json:"blockHash"`
	BlockNumber        string   `json:"blockNumber"`
	Era                string   `json:"era"`
	GenesisHash        string   `json:"genesisHash"`
	Method             string   `json:"method"`
	Nonce              string   `json:"nonce"`
	SpecVersion        string   `json:"specVersion"`
	Tip                string   `json:"tip"`
	TransactionVersion string   `json:"transactionVersion"`
	SignedExtensions   []string `json:"signedExtensions"`
	Version            int      `json:"version"`
}

// SigningBytes assembles the byte blob to sign: the concatenation of the
// already SCALE-encoded payload chunks in signed-extension order, followed
// by the genesis and block hashes.
func (p *SignerPayloadJSON) SigningBytes() ([]byte, error) {
	var out []byte
	for _, field := range []struct {
		name  string
		value string
	}{
		{"method", p.Method},
		{"era", p.Era},
		{"nonce", p.Nonce},
		{"tip", p.Tip},
		{"specVersion", p.SpecVersion},
		{"transactionVersion", p.TransactionVersion},
		{"genesisHash", p.GenesisHash},
		{"blockHash", p.BlockHash},
	} {
		raw, err := decodeHex(field.value)
		if err != nil {
			return nil, fmt.Errorf("unable to decode %s: %w",
				field.name, err)
		}

		out = append(out, raw...)
	}

	return out, nil
}

// SignerPayloadRaw is an unstructured signing payload (raw bytes).
type SignerPayloadRaw struct {
	Address string `json:"address"`

	// Data is the 0x-prefixed hex encoded blob to sign.
	Data string `json:"data"`

	// Type is either "bytes" or "payload".
	Type string `json:"type"`
}

// SigningBytes returns the decoded raw data.
func (p *SignerPayloadRaw) SigningBytes() ([]byte, error) {
	raw, err := decodeHex(p.Data)
	if err != nil {
		return nil, fmt.Errorf("unable to decode raw payload: %w", err)
	}

	return raw, nil
}

// decodeHex decodes a 0x-prefixed hex string. Odd-length values, as the JS
// signer-payload ecosystem produces for small numbers, are left-padded with
// a zero nibble.
func decodeHex(value string) ([]byte, error) {
	value = strings.TrimPrefix(value, "0x")
	if len(value)%2 != 0 {
		value = "0" + value
	}

	return hex.DecodeString(value)
}
