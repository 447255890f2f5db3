package samlidp

import (
	"crypto/x509"
	"fmt"

	"github.com/beevik/etree"
	"github.com/crewjam/saml/xmlenc"
)

// Encryptor encrypts a serialized assertion into an xenc:EncryptedData
// fragment consumable by a decryption-capable SAML consumer.
type Encryptor interface {
	Encrypt(assertionXML string, certificate []byte) (string, error)
}

// XMLEncEncryptor is the default Encryptor. It produces an aes128-cbc
// EncryptedData carrying an rsa-oaep-mgf1p encrypted key, the shape most
// SAML consumers support out of the box.
type XMLEncEncryptor struct{}

func (XMLEncEncryptor) Encrypt(assertionXML string, certificate []byte) (string, error) {
	const op = "samlidp.XMLEncEncryptor.Encrypt"

	der, err := parseCertificate(certificate)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return "", fmt.Errorf("%s: cannot parse certificate: %w", op, ErrInvalidCertificate)
	}

	encryptor := xmlenc.OAEP()
	encryptor.BlockCipher = xmlenc.AES128CBC
	encryptor.DigestMethod = &xmlenc.SHA1

	encryptedData, err := encryptor.Encrypt(cert, []byte(assertionXML), nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	encryptedData.CreateAttr("Type", "http://www.w3.org/2001/04/xmlenc#Element")

	fragment := etree.NewDocument()
	fragment.SetRoot(encryptedData)

	return fragment.WriteToString()
}

// encryptAssertion replaces the assertion subtree of a signed response with
// its encrypted form. The serialized plain assertion is handed to the
// encryptor from one parse of the document; the replacement happens in a
// second, independent parse. The plain document never leaves this stage.
func encryptAssertion(doc string, certDER []byte, encryptor Encryptor) (string, error) {
	const op = "samlidp.encryptAssertion"

	src := etree.NewDocument()
	if err := src.ReadFromString(doc); err != nil {
		return "", fmt.Errorf("%s: cannot parse document: %w", op, err)
	}

	assertion, err := selectExactlyOne(src, "//Assertion")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	plain := etree.NewDocument()
	plain.SetRoot(assertion.Copy())

	serialized, err := plain.WriteToString()
	if err != nil {
		return "", fmt.Errorf("%s: cannot serialize assertion: %w", op, err)
	}

	fragment, err := encryptor.Encrypt(serialized, certDER)
	if err != nil {
		return "", fmt.Errorf("%s: encryptor failed: %w", op, err)
	}

	parsed := etree.NewDocument()
	if err := parsed.ReadFromString(fragment); err != nil {
		return "", fmt.Errorf("%s: cannot parse encryptor output: %w", op, err)
	}
	if parsed.Root() == nil {
		return "", fmt.Errorf("%s: empty encryptor output: %w", op, ErrMissingElement)
	}

	out := etree.NewDocument()
	if err := out.ReadFromString(doc); err != nil {
		return "", fmt.Errorf("%s: cannot parse document: %w", op, err)
	}

	target, err := selectExactlyOne(out, "//Assertion")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	parent := target.Parent()
	index := target.Index()
	parent.RemoveChild(target)

	encrypted := etree.NewElement("saml:EncryptedAssertion")
	encrypted.CreateAttr("xmlns:saml", xmlnsSAML)
	encrypted.AddChild(parsed.Root())
	parent.InsertChildAt(index, encrypted)

	return out.WriteToString()
}
