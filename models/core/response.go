package core

import (
	"encoding/xml"
	"time"
)

// Response is the consumer-side model of the produced response document.
// The producer assembles the document as an element tree to keep full control
// over element and attribute order; these structs exist so that consumers and
// tests can unmarshal and inspect the produced XML.
type Response struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:protocol Response"`

	ID           string    `xml:",attr"` // required
	Version      string    `xml:",attr"` // required
	IssueInstant time.Time `xml:",attr"` // required
	Destination  string    `xml:",attr"`
	Consent      Consent   `xml:",attr,omitempty"`
	InResponseTo string    `xml:",attr"`

	Issuer *Issuer
	Status Status

	Assertion          []*Assertion
	EncryptedAssertion []*EncryptedAssertion
}

// See 3.2.2.1 http://docs.oasis-open.org/security/saml/v2.0/saml-core-2.0-os.pdf
type Status struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:protocol Status"`

	StatusCode StatusCode // required
}

// See 3.2.2.2 http://docs.oasis-open.org/security/saml/v2.0/saml-core-2.0-os.pdf
type StatusCode struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:protocol StatusCode"`

	Value StatusCodeType `xml:",attr"` // required
}

// See 2.3.3 http://docs.oasis-open.org/security/saml/v2.0/saml-core-2.0-os.pdf
type Assertion struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion Assertion"`

	ID           string    `xml:",attr"` // required
	Version      string    `xml:",attr"` // required
	IssueInstant time.Time `xml:",attr"` // required

	Issuer             *Issuer // required
	Subject            *Subject
	Conditions         *Conditions
	AttributeStatement *AttributeStatement
	AuthnStatement     *AuthnStatement
}

// EncryptedAssertion holds the encrypted form of an assertion. The contained
// EncryptedData is kept as raw XML; decryption is delegated to an
// xml-encryption capable library.
type EncryptedAssertion struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion EncryptedAssertion"`

	Data string `xml:",innerxml"`
}

// See 2.4 http://docs.oasis-open.org/security/saml/v2.0/saml-core-2.0-os.pdf
type Subject struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion Subject"`

	NameID              *NameID
	SubjectConfirmation []*SubjectConfirmation
}

// See 2.4.1.1 http://docs.oasis-open.org/security/saml/v2.0/saml-core-2.0-os.pdf
type SubjectConfirmation struct {
	Method ConfirmationMethod `xml:",attr"` // required

	SubjectConfirmationData *SubjectConfirmationData
}

// See 2.4.1.2 http://docs.oasis-open.org/security/saml/v2.0/saml-core-2.0-os.pdf
type SubjectConfirmationData struct {
	NotOnOrAfter time.Time `xml:",attr"`
	Recipient    string    `xml:",attr"`
	InResponseTo string    `xml:",attr"`
}

// See 2.5.1 http://docs.oasis-open.org/security/saml/v2.0/saml-core-2.0-os.pdf
type Conditions struct {
	NotBefore    time.Time `xml:",attr"`
	NotOnOrAfter time.Time `xml:",attr"`

	AudienceRestriction []AudienceRestriction
}

// See 2.5.1.4 http://docs.oasis-open.org/security/saml/v2.0/saml-core-2.0-os.pdf
type AudienceRestriction struct {
	Audience []string
}

// See 2.7.3 http://docs.oasis-open.org/security/saml/v2.0/saml-core-2.0-os.pdf
type AttributeStatement struct {
	Attribute []Attribute
}

// See 2.7.3.1 http://docs.oasis-open.org/security/saml/v2.0/saml-core-2.0-os.pdf
type Attribute struct {
	Name           string `xml:",attr"`
	AttributeValue []string
}

// See 2.7.2 http://docs.oasis-open.org/security/saml/v2.0/saml-core-2.0-os.pdf
type AuthnStatement struct {
	AuthnInstant time.Time `xml:",attr"` // required
	SessionIndex string    `xml:",attr"`

	AuthnContext AuthnContext // required
}

// See 2.7.2.2 http://docs.oasis-open.org/security/saml/v2.0/saml-core-2.0-os.pdf
type AuthnContext struct {
	AuthnContextClassRef AuthnContextClassRef
}

func (r *Response) GetAssertion() *Assertion {
	if len(r.Assertion) == 0 {
		return nil
	}

	return r.Assertion[0]
}

func (r *Response) GetEncryptedAssertion() *EncryptedAssertion {
	if len(r.EncryptedAssertion) == 0 {
		return nil
	}

	return r.EncryptedAssertion[0]
}

// GetIssuer returns the issuer value from the Assertion.Issuer complex type.
func (a *Assertion) GetIssuer() string {
	return a.Issuer.Value
}

// GetSubject returns the subject value from the Assertion.Subject complex type.
func (a *Assertion) GetSubject() string {
	return a.Subject.NameID.Value
}

// GetSubjectFormat returns the subject format value.
func (a *Assertion) GetSubjectFormat() string {
	return string(a.Subject.NameID.Format)
}
