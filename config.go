package samlidp

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"

	"github.com/hashicorp/go-uuid"
	dsig "github.com/russellhaering/goxmldsig"
)

// DigestAlgorithm selects the hash used for both the assertion digest and
// the RSA signature. It is a closed enumeration; unknown values are rejected
// during validation rather than silently falling back to a default hash.
type DigestAlgorithm string

const (
	DigestSHA1   DigestAlgorithm = "SHA1"
	DigestSHA256 DigestAlgorithm = "SHA256"
	DigestSHA384 DigestAlgorithm = "SHA384"
	DigestSHA512 DigestAlgorithm = "SHA512"
)

const (
	digestMethodSHA1   = "http://www.w3.org/2000/09/xmldsig#sha1"
	digestMethodSHA256 = "http://www.w3.org/2001/04/xmlenc#sha256"
	digestMethodSHA384 = "http://www.w3.org/2001/04/xmldsig-more#sha384"
	digestMethodSHA512 = "http://www.w3.org/2001/04/xmlenc#sha512"
)

// Hash returns the crypto.Hash for the algorithm.
func (a DigestAlgorithm) Hash() (crypto.Hash, error) {
	const op = "samlidp.DigestAlgorithm.Hash"

	switch a {
	case DigestSHA1:
		return crypto.SHA1, nil
	case DigestSHA256:
		return crypto.SHA256, nil
	case DigestSHA384:
		return crypto.SHA384, nil
	case DigestSHA512:
		return crypto.SHA512, nil
	default:
		return 0, fmt.Errorf("%s: %q: %w", op, string(a), ErrUnsupportedAlgorithm)
	}
}

// DigestMethod returns the xmldsig DigestMethod algorithm URI for the
// signature's Reference element.
func (a DigestAlgorithm) DigestMethod() (string, error) {
	const op = "samlidp.DigestAlgorithm.DigestMethod"

	switch a {
	case DigestSHA1:
		return digestMethodSHA1, nil
	case DigestSHA256:
		return digestMethodSHA256, nil
	case DigestSHA384:
		return digestMethodSHA384, nil
	case DigestSHA512:
		return digestMethodSHA512, nil
	default:
		return "", fmt.Errorf("%s: %q: %w", op, string(a), ErrUnsupportedAlgorithm)
	}
}

// SignatureMethod returns the RSA SignatureMethod algorithm URI matching the
// digest algorithm.
func (a DigestAlgorithm) SignatureMethod() (string, error) {
	const op = "samlidp.DigestAlgorithm.SignatureMethod"

	switch a {
	case DigestSHA1:
		return dsig.RSASHA1SignatureMethod, nil
	case DigestSHA256:
		return dsig.RSASHA256SignatureMethod, nil
	case DigestSHA384:
		return dsig.RSASHA384SignatureMethod, nil
	case DigestSHA512:
		return dsig.RSASHA512SignatureMethod, nil
	default:
		return "", fmt.Errorf("%s: %q: %w", op, string(a), ErrUnsupportedAlgorithm)
	}
}

// Attribute is a single name/value pair of the assertion's attribute
// statement.
type Attribute struct {
	Name  string
	Value string
}

// ResponseRequest describes a single authentication response to produce.
// All inputs are provided in memory; a request is never mutated by a build.
type ResponseRequest struct {
	// NameID is the subject identifier, in email-address format. (required)
	NameID string

	// IssuerURI is a globally unique identifier of the identity provider.
	// It is also emitted as the assertion audience. (required)
	IssuerURI string

	// ACSURL is the assertion consumer service endpoint at the SP the
	// response is destined for. (required)
	ACSURL string

	// RequestID is the ID of the authentication request being answered,
	// emitted as InResponseTo. (required)
	RequestID string

	// UserAttributes are emitted as the assertion's attribute statement,
	// preserving their order. May be empty.
	UserAttributes []Attribute

	// DigestAlgorithm selects the digest and signature hash. (required)
	DigestAlgorithm DigestAlgorithm

	// Certificate is the signing certificate, PEM or raw DER. (required)
	Certificate []byte

	// PrivateKey is the RSA signing key in PEM format, PKCS#1 or
	// PKCS#8. (required)
	PrivateKey []byte

	// EncryptAssertion replaces the assertion of the signed response with
	// an EncryptedAssertion before the response is returned.
	EncryptAssertion bool
}

// Validate validates the provided response request.
func (r *ResponseRequest) Validate() error {
	const op = "samlidp.ResponseRequest.Validate"

	if r.NameID == "" {
		return fmt.Errorf("%s: NameID not set: %w", op, ErrInvalidParameter)
	}

	if r.IssuerURI == "" {
		return fmt.Errorf("%s: IssuerURI not set: %w", op, ErrInvalidParameter)
	}

	if r.ACSURL == "" {
		return fmt.Errorf("%s: ACS URL not set: %w", op, ErrInvalidParameter)
	}

	if r.RequestID == "" {
		return fmt.Errorf("%s: RequestID not set: %w", op, ErrInvalidParameter)
	}

	if _, err := r.DigestAlgorithm.Hash(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := parseCertificate(r.Certificate); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := parseSigningKey(r.PrivateKey); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// generateID generates an XSD:ID conform ID.
// A UUID prefixed with an underscore, since IDs have to start with a letter
// or an underscore, which is not always given for UUIDs.
func generateID() (string, error) {
	newID, err := uuid.GenerateUUID()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("_%s", newID), nil
}

// parseCertificate normalizes a PEM or raw DER encoded certificate to DER.
func parseCertificate(data []byte) ([]byte, error) {
	const op = "samlidp.parseCertificate"

	if len(data) == 0 {
		return nil, fmt.Errorf("%s: no certificate provided: %w", op, ErrInvalidCertificate)
	}

	der := data
	if block, _ := pem.Decode(data); block != nil {
		der = block.Bytes
	}

	if _, err := x509.ParseCertificate(der); err != nil {
		return nil, fmt.Errorf("%s: cannot parse certificate: %w", op, ErrInvalidCertificate)
	}

	return der, nil
}

// parseSigningKey parses a PEM encoded RSA private key, accepting both the
// PKCS#1 and PKCS#8 container formats.
func parseSigningKey(data []byte) (*rsa.PrivateKey, error) {
	const op = "samlidp.parseSigningKey"

	if len(data) == 0 {
		return nil, fmt.Errorf("%s: no private key provided: %w", op, ErrInvalidPrivateKey)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%s: no PEM block found: %w", op, ErrInvalidPrivateKey)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%s: cannot parse private key: %w", op, ErrInvalidPrivateKey)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s: not an RSA key: %w", op, ErrInvalidPrivateKey)
	}

	return key, nil
}
