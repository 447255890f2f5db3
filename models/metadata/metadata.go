// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package metadata

import (
	"encoding/xml"
	"time"

	dsigtypes "github.com/russellhaering/goxmldsig/types"

	"github.com/hashicorp/samlidp/models/core"
)

type ProtocolSupportEnumeration string

const (
	ProtocolSupportEnumerationProtocol ProtocolSupportEnumeration = "urn:oasis:names:tc:SAML:2.0:protocol"
)

// KeyType defines what the key is used for.
// Possible values are "encryption" and "signing".
// See 2.4.1.1 http://docs.oasis-open.org/security/saml/v2.0/saml-metadata-2.0-os.pdf
type KeyType string

const (
	KeyTypeEncryption KeyType = "encryption"
	KeyTypeSigning    KeyType = "signing"
)

// Endpoint describes a SAML protocol binding endpoint at which a SAML entity
// can be sent protocol messages.
// See 2.2.2 http://docs.oasis-open.org/security/saml/v2.0/saml-metadata-2.0-os.pdf
type Endpoint struct {
	Binding          core.ServiceBinding `xml:",attr"`
	Location         string              `xml:",attr"`
	ResponseLocation string              `xml:",attr,omitempty"`
}

// KeyDescriptor provides information about the cryptographic key(s) that an
// entity uses to sign data or receive encrypted keys.
// See 2.4.1.1 http://docs.oasis-open.org/security/saml/v2.0/saml-metadata-2.0-os.pdf
type KeyDescriptor struct {
	Use     KeyType `xml:"use,attr"`
	KeyInfo KeyInfo
}

// KeyInfo directly or indirectly identifies a key. It defines the usage of
// the XML Signature <ds:KeyInfo> element.
// See https://www.w3.org/TR/xmldsig-core1/#sec-KeyInfo
type KeyInfo struct {
	dsigtypes.KeyInfo
}

// IDPSSODescriptor contains profiles specific to identity providers
// supporting SSO.
// See 2.4.3 http://docs.oasis-open.org/security/saml/v2.0/saml-metadata-2.0-os.pdf
type IDPSSODescriptor struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:metadata IDPSSODescriptor"`

	WantAuthnRequestsSigned    bool                       `xml:",attr"`
	ProtocolSupportEnumeration ProtocolSupportEnumeration `xml:"protocolSupportEnumeration,attr"`

	KeyDescriptor       []KeyDescriptor
	NameIDFormat        []core.NameIDFormat
	SingleSignOnService []Endpoint
}

// EntityDescriptorIDPSSO is an EntityDescriptor that accommodates the
// IDPSSODescriptor as descriptor field only.
// See 2.3.2 in http://docs.oasis-open.org/security/saml/v2.0/saml-metadata-2.0-os.pdf
type EntityDescriptorIDPSSO struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:metadata EntityDescriptor"`

	EntityID   string     `xml:"entityID,attr"`
	ValidUntil *time.Time `xml:"validUntil,attr,omitempty"`

	IDPSSODescriptor []*IDPSSODescriptor
}

func (e *EntityDescriptorIDPSSO) GetLocationForBinding(b core.ServiceBinding) (string, bool) {
	for _, isd := range e.IDPSSODescriptor {
		for _, ssos := range isd.SingleSignOnService {
			if ssos.Binding == b {
				return ssos.Location, true
			}
		}
	}

	return "", false
}
