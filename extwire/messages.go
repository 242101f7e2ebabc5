// Package extwire defines the typed message protocol spoken between the
// signer daemon and the extension surfaces (popup UI and content-script
// bridged tabs).
package extwire

import (
	"encoding/json"
	"strings"
)

// Channel names identifying the two duplex message channels.
const (
	// PortExtension is the channel used by the extension's own trusted UI
	// surfaces.
	PortExtension = "reef_ew_extension"

	// PortContent is the channel used by content-script bridged tabs.
	PortContent = "reef_ew_content"

	// PortPage is the channel name used between the content script and
	// the in-page provider. The daemon never sees it directly; it is
	// defined here so all surfaces share one source of truth.
	PortPage = "reef_ew_page"
)

// MessageKind is the string tag identifying a request type. Tags in the
// pri(...) namespace are accepted only from the trusted extension channel,
// tags in the pub(...) namespace only from tabs.
type MessageKind string

// Trusted extension-side message kinds.
const (
	MsgAccountsCreateSuri MessageKind = "pri(accounts.create.suri)"
	MsgAccountsEdit       MessageKind = "pri(accounts.edit)"
	MsgAccountsForget     MessageKind = "pri(accounts.forget)"
	MsgAccountsSelect     MessageKind = "pri(accounts.select)"
	MsgAccountsSubscribe  MessageKind = "pri(accounts.subscribe)"

	MsgAuthorizeList      MessageKind = "pri(authorize.list)"
	MsgAuthorizeApprove   MessageKind = "pri(authorize.approve)"
	MsgAuthorizeReject    MessageKind = "pri(authorize.reject)"
	MsgAuthorizeToggle    MessageKind = "pri(authorize.toggle)"
	MsgAuthorizeRemove    MessageKind = "pri(authorize.remove)"
	MsgAuthorizeRequests  MessageKind = "pri(authorize.requests)"

	MsgMetadataApprove  MessageKind = "pri(metadata.approve)"
	MsgMetadataReject   MessageKind = "pri(metadata.reject)"
	MsgMetadataList     MessageKind = "pri(metadata.list)"
	MsgMetadataRequests MessageKind = "pri(metadata.requests)"

	MsgNetworkSelect       MessageKind = "pri(network.select)"
	MsgNetworkSubscribePri MessageKind = "pri(network.subscribe)"

	MsgSigningApprove  MessageKind = "pri(signing.approve)"
	MsgSigningCancel   MessageKind = "pri(signing.cancel)"
	MsgSigningIsLocked MessageKind = "pri(signing.isLocked)"
	MsgSigningRequests MessageKind = "pri(signing.requests)"
)

// Lower-trust tab-side message kinds.
const (
	MsgAuthorizeTab         MessageKind = "pub(authorize.tab)"
	MsgAccountsList         MessageKind = "pub(accounts.list)"
	MsgAccountsSubscribeTab MessageKind = "pub(accounts.subscribe)"
	MsgExtrinsicSign        MessageKind = "pub(extrinsic.sign)"
	MsgBytesSign            MessageKind = "pub(bytes.sign)"
	MsgMetadataListTab      MessageKind = "pub(metadata.list)"
	MsgMetadataProvide      MessageKind = "pub(metadata.provide)"
	MsgNetworkSubscribe     MessageKind = "pub(network.subscribe)"
	MsgPhishingRedirect     MessageKind = "pub(phishing.redirectIfDenied)"
)

// IsTabKind reports whether the tag belongs to the lower-trust tab
// namespace.
func (k MessageKind) IsTabKind() bool {
	return strings.HasPrefix(string(k), "pub(")
}

// IsExtensionKind reports whether the tag belongs to the trusted extension
// namespace.
func (k MessageKind) IsExtensionKind() bool {
	return strings.HasPrefix(string(k), "pri(")
}

// RequiresAuthorization reports whether a tab message of this kind is gated
// on the sending origin being authorized. Authorization requests themselves,
// network subscriptions and the phishing check pass ungated.
func (k MessageKind) RequiresAuthorization() bool {
	if !k.IsTabKind() {
		return false
	}

	switch k {
	case MsgAuthorizeTab, MsgNetworkSubscribe, MsgPhishingRedirect:
		return false
	default:
		return true
	}
}

// Request is the envelope of every inbound message.
type Request struct {
	// ID correlates the eventual response with this request. It is
	// unique per connection.
	ID string `json:"id"`

	// Message is the kind tag selecting the operation.
	Message MessageKind `json:"message"`

	// Request is the kind-specific payload.
	Request json.RawMessage `json:"request,omitempty"`
}

// Response is the envelope of every outbound message. Exactly one of
// Response, Error or Subscription is populated. Subscription messages repeat
// over the life of a subscription, sharing the originating request's id.
type Response struct {
	ID           string          `json:"id"`
	Response     json.RawMessage `json:"response,omitempty"`
	Subscription json.RawMessage `json:"subscription,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// NewResponse marshals the payload into a response envelope.
func NewResponse(id string, payload interface{}) (*Response, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Response{ID: id, Response: raw}, nil
}

// NewSubscriptionUpdate marshals the payload into a subscription envelope.
func NewSubscriptionUpdate(id string, payload interface{}) (*Response,
	error) {

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Response{ID: id, Subscription: raw}, nil
}

// NewErrorResponse flattens an error into a response envelope. The typed
// error taxonomy only exists daemon-side; callers distinguish errors by
// string matching.
func NewErrorResponse(id string, err error) *Response {
	return &Response{ID: id, Error: err.Error()}
}
