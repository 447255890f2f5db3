// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package core

import "encoding/xml"

const (
	SAMLVersion2 = "2.0"
)

type ServiceBinding string

const (
	ServiceBindingHTTPPost     ServiceBinding = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"
	ServiceBindingHTTPRedirect ServiceBinding = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect"
)

// See 8.3 http://docs.oasis-open.org/security/saml/v2.0/saml-core-2.0-os.pdf
type NameIDFormat string

const (
	// See 8.3.1 - 8.3.8 http://docs.oasis-open.org/security/saml/v2.0/saml-core-2.0-os.pdf
	NameIDFormatUnspecified NameIDFormat = "urn:oasis:names:tc:SAML:1.1:nameid-format:unspecified"
	NameIDFormatEmail       NameIDFormat = "urn:oasis:names:tc:SAML:1.1:nameid-format:emailAddress"
	NameIDFormatEntity      NameIDFormat = "urn:oasis:names:tc:SAML:2.0:nameid-format:entity"
	NameIDFormatPersistent  NameIDFormat = "urn:oasis:names:tc:SAML:2.0:nameid-format:persistent"
	NameIDFormatTransient   NameIDFormat = "urn:oasis:names:tc:SAML:2.0:nameid-format:transient"
)

// StatusCodeType defines the possible status codes in a SAML Response.
// The possible status codes are defined in:
// 3.2.2.2 http://docs.oasis-open.org/security/saml/v2.0/saml-core-2.0-os.pdf
type StatusCodeType string

const (
	// StatusCodeSuccess indicates that the request succeeded.
	StatusCodeSuccess StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:Success"

	// StatusCodeRequester indicates that the request could not be performed due to
	// an error on the part of the requester.
	StatusCodeRequester StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:Requester"

	// StatusCodeResponder indicates that the request could not be performed due to
	// an error on the part of the SAML responder or SAML authority.
	StatusCodeResponder StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:Responder"

	// StatusCodeAuthnFailed indicates that the responding provider was unable to
	// successfully authenticate the principal.
	StatusCodeAuthnFailed StatusCodeType = "urn:oasis:names:tc:SAML:2.0:status:AuthnFailed"
)

// ConfirmationMethod indicates the specific method to be used by the relying party
// to determine that the request or message came from a system entity that is
// associated with the subject of the assertion.
//
// See 3. http://docs.oasis-open.org/security/saml/v2.0/saml-profiles-2.0-os.pdf
type ConfirmationMethod string

const (
	// ConfirmationMethodBearer indicates that the bearer can confirm itself as the
	// subject.
	//
	// See 3.3 http://docs.oasis-open.org/security/saml/v2.0/saml-profiles-2.0-os.pdf
	ConfirmationMethodBearer ConfirmationMethod = "urn:oasis:names:tc:SAML:2.0:cm:bearer"

	// ConfirmationMethodSenderVouches indicates that no other information is
	// available about the context of use of the assertion.
	//
	// See 3.2 http://docs.oasis-open.org/security/saml/v2.0/saml-profiles-2.0-os.pdf
	ConfirmationMethodSenderVouches ConfirmationMethod = "urn:oasis:names:tc:SAML:2.0:cm:sender-vouches"
)

// Consent indicates whether or not, and under what conditions, consent of a
// principal was obtained in the sending of a message.
// See 8.4 http://docs.oasis-open.org/security/saml/v2.0/saml-core-2.0-os.pdf
type Consent string

const (
	ConsentUnspecified Consent = "urn:oasis:names:tc:SAML:2.0:consent:unspecified"
	ConsentObtained    Consent = "urn:oasis:names:tc:SAML:2.0:consent:obtained"
)

// AttributeNameFormat classifies the interpretation of an attribute name.
// See 8.2 http://docs.oasis-open.org/security/saml/v2.0/saml-core-2.0-os.pdf
type AttributeNameFormat string

const (
	AttributeNameFormatUnspecified AttributeNameFormat = "urn:oasis:names:tc:SAML:2.0:attrname-format:unspecified"
	AttributeNameFormatURI         AttributeNameFormat = "urn:oasis:names:tc:SAML:2.0:attrname-format:uri"
	AttributeNameFormatBasic       AttributeNameFormat = "urn:oasis:names:tc:SAML:2.0:attrname-format:basic"
)

// AuthnContextClassRef identifies an authentication context class.
// See 3. http://docs.oasis-open.org/security/saml/v2.0/saml-authn-context-2.0-os.pdf
type AuthnContextClassRef string

const (
	AuthnContextPassword                   AuthnContextClassRef = "urn:oasis:names:tc:SAML:2.0:ac:classes:Password"
	AuthnContextPasswordProtectedTransport AuthnContextClassRef = "urn:oasis:names:tc:SAML:2.0:ac:classes:PasswordProtectedTransport"
)

// See 2.2.2 http://docs.oasis-open.org/security/saml/v2.0/saml-core-2.0-os.pdf
type NameIDType struct {
	NameQualifier   string       `xml:",attr,omitempty"`
	SPNameQualifier string       `xml:",attr,omitempty"`
	Format          NameIDFormat `xml:",attr,omitempty"`
	SPProvidedID    string       `xml:",attr,omitempty"`

	Value string `xml:",chardata"`
}

// See 2.2.3 http://docs.oasis-open.org/security/saml/v2.0/saml-core-2.0-os.pdf
type NameID = NameIDType

// Issuer, with type NameIDType, provides information about the issuer of a SAML
// assertion or protocol message.
// See 2.2.5 http://docs.oasis-open.org/security/saml/v2.0/saml-core-2.0-os.pdf
type Issuer struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion Issuer"`

	NameIDType
}
