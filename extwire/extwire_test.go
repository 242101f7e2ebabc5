package extwire

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMessageKindNamespaces tests the trust-namespace helpers.
func TestMessageKindNamespaces(t *testing.T) {
	require.True(t, MsgAccountsList.IsTabKind())
	require.False(t, MsgAccountsList.IsExtensionKind())

	require.True(t, MsgSigningApprove.IsExtensionKind())
	require.False(t, MsgSigningApprove.IsTabKind())
}

// TestRequiresAuthorization tests that exactly the ungated tab kinds skip
// the origin check, and that trusted kinds are never gated.
func TestRequiresAuthorization(t *testing.T) {
	for _, kind := range []MessageKind{
		MsgAccountsList, MsgAccountsSubscribeTab, MsgExtrinsicSign,
		MsgBytesSign, MsgMetadataListTab, MsgMetadataProvide,
	} {
		require.True(t, kind.RequiresAuthorization(), string(kind))
	}

	for _, kind := range []MessageKind{
		MsgAuthorizeTab, MsgNetworkSubscribe, MsgPhishingRedirect,
		MsgSigningApprove, MsgAuthorizeApprove,
	} {
		require.False(t, kind.RequiresAuthorization(), string(kind))
	}
}

// TestResponseEnvelopes tests that exactly one response field is populated
// per envelope constructor.
func TestResponseEnvelopes(t *testing.T) {
	resp, err := NewResponse("1", true)
	require.NoError(t, err)
	require.JSONEq(t, "true", string(resp.Response))
	require.Empty(t, resp.Error)
	require.Nil(t, resp.Subscription)

	sub, err := NewSubscriptionUpdate("2", []string{"a"})
	require.NoError(t, err)
	require.JSONEq(t, `["a"]`, string(sub.Subscription))
	require.Nil(t, sub.Response)

	errResp := NewErrorResponse("3", errors.New("boom"))
	require.Equal(t, "boom", errResp.Error)
	require.Nil(t, errResp.Response)
}

// TestSignerPayloadJSONSigningBytes tests assembly of the extrinsic signing
// blob from its hex chunks.
func TestSignerPayloadJSONSigningBytes(t *testing.T) {
	payload := &SignerPayloadJSON{
		Method:             "0x0001",
		Era:                "0x00",
		Nonce:              "0x04",
		Tip:                "0x00",
		SpecVersion:        "0x00000008",
		TransactionVersion: "0x00000002",
		GenesisHash:        "0xaabb",
		BlockHash:          "0xccdd",
	}

	blob, err := payload.SigningBytes()
	require.NoError(t, err)
	require.Equal(t, []byte{
		0x00, 0x01, // method
		0x00,       // era
		0x04,       // nonce
		0x00,       // tip
		0x00, 0x00, 0x00, 0x08, // spec version
		0x00, 0x00, 0x00, 0x02, // tx version
		0xaa, 0xbb, // genesis hash
		0xcc, 0xdd, // block hash
	}, blob)

	payload.Era = "not hex"
	_, err = payload.SigningBytes()
	require.Error(t, err)
}

// TestSigningBytesOddLengthHex tests that odd-length hex chunks, as the JS
// signer-payload ecosystem emits for small numbers, decode with a zero
// nibble prepended instead of failing the approval.
func TestSigningBytesOddLengthHex(t *testing.T) {
	payload := &SignerPayloadJSON{
		Method:             "0x400",
		Era:                "0x0",
		Nonce:              "0x4",
		Tip:                "0x0",
		SpecVersion:        "0x8",
		TransactionVersion: "0x2",
		GenesisHash:        "0xaabb",
		BlockHash:          "0xccdd",
	}

	blob, err := payload.SigningBytes()
	require.NoError(t, err)
	require.Equal(t, []byte{
		0x04, 0x00, // method
		0x00,       // era
		0x04,       // nonce
		0x00,       // tip
		0x08,       // spec version
		0x02,       // tx version
		0xaa, 0xbb, // genesis hash
		0xcc, 0xdd, // block hash
	}, blob)

	raw := &SignerPayloadRaw{Data: "0xf", Type: "bytes"}
	blob, err = raw.SigningBytes()
	require.NoError(t, err)
	require.Equal(t, []byte{0x0f}, blob)
}

// TestRequestEnvelopeDecoding tests decoding an inbound envelope with a
// kind-specific payload.
func TestRequestEnvelopeDecoding(t *testing.T) {
	raw := `{"id":"7","message":"pri(signing.approve)",` +
		`"request":{"id":"1700000000000.1","password":"pw",` +
		`"savePassword":true}}`

	var req Request
	require.NoError(t, json.Unmarshal([]byte(raw), &req))
	require.Equal(t, MsgSigningApprove, req.Message)

	var approve RequestSigningApprove
	require.NoError(t, json.Unmarshal(req.Request, &approve))
	require.Equal(t, "1700000000000.1", approve.ID)
	require.True(t, approve.SavePassword)
}
