package samlidp

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
)

// canonicalizer returns the exclusive canonicalization used for both the
// assertion digest and the SignedInfo signature. This is the only
// canonicalization schema the pipeline supports.
func canonicalizer() dsig.Canonicalizer {
	return dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")
}

// setDigest computes the assertion digest and writes it into the DigestValue
// placeholder. The placeholder signature subtree is removed from the working
// copy before canonicalization; a signature is never part of its own digest.
// The value is written into a second, unmodified parse of the document so the
// signature skeleton stays intact.
func setDigest(doc string, alg DigestAlgorithm, assertionID string) (string, error) {
	const op = "samlidp.setDigest"

	working := etree.NewDocument()
	if err := working.ReadFromString(doc); err != nil {
		return "", fmt.Errorf("%s: cannot parse document: %w", op, err)
	}

	sig, err := selectExactlyOne(working, "//Signature")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	sig.Parent().RemoveChild(sig)

	assertion, err := assertionByID(working, assertionID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	canonical, err := canonicalizer().Canonicalize(assertion)
	if err != nil {
		return "", fmt.Errorf("%s: canonicalization failed: %w", op, err)
	}

	hash, err := alg.Hash()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	h := hash.New()
	h.Write(canonical)
	digest := strings.TrimSpace(base64.StdEncoding.EncodeToString(h.Sum(nil)))

	out := etree.NewDocument()
	if err := out.ReadFromString(doc); err != nil {
		return "", fmt.Errorf("%s: cannot parse document: %w", op, err)
	}

	digestValue, err := selectExactlyOne(out, "//DigestValue")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	digestValue.SetText(digest)

	return out.WriteToString()
}

// setSignature canonicalizes the SignedInfo subtree, which at this point
// carries the correct digest, signs it with the RSA key and writes the
// encoded value into the SignatureValue placeholder of a separate copy.
func setSignature(doc string, alg DigestAlgorithm, key *rsa.PrivateKey) (string, error) {
	const op = "samlidp.setSignature"

	working := etree.NewDocument()
	if err := working.ReadFromString(doc); err != nil {
		return "", fmt.Errorf("%s: cannot parse document: %w", op, err)
	}

	signedInfo, err := selectExactlyOne(working, "//SignedInfo")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	// The ds prefix is declared on the enclosing Signature element. The
	// canonicalizer only sees the subtree it is handed, so a detached copy
	// carries the declaration explicitly; exclusive canonicalization renders
	// it at the SignedInfo apex either way, matching what a verifier
	// computes.
	detached := signedInfo.Copy()
	detached.CreateAttr("xmlns:ds", xmlnsDS)

	canonical, err := canonicalizer().Canonicalize(detached)
	if err != nil {
		return "", fmt.Errorf("%s: canonicalization failed: %w", op, err)
	}

	hash, err := alg.Hash()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	h := hash.New()
	h.Write(canonical)

	signature, err := rsa.SignPKCS1v15(rand.Reader, key, hash, h.Sum(nil))
	if err != nil {
		return "", fmt.Errorf("%s: signing failed: %w", op, err)
	}

	value := strings.ReplaceAll(base64.StdEncoding.EncodeToString(signature), "\n", "")

	out := etree.NewDocument()
	if err := out.ReadFromString(doc); err != nil {
		return "", fmt.Errorf("%s: cannot parse document: %w", op, err)
	}

	signatureValue, err := selectExactlyOne(out, "//SignatureValue")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	signatureValue.SetText(value)

	return out.WriteToString()
}

// assertionByID resolves the assertion element carrying the given ID
// attribute. The signature's Reference URI points at exactly this ID.
func assertionByID(doc *etree.Document, id string) (*etree.Element, error) {
	const op = "samlidp.assertionByID"

	for _, el := range doc.FindElements("//Assertion") {
		if el.SelectAttrValue("ID", "") == id {
			return el, nil
		}
	}

	return nil, fmt.Errorf("%s: no assertion with ID %q: %w", op, id, ErrMissingElement)
}

// selectExactlyOne enforces the document invariant of a single matching
// element. More than one match indicates an assembler bug, not an input
// problem.
func selectExactlyOne(doc *etree.Document, path string) (*etree.Element, error) {
	const op = "samlidp.selectExactlyOne"

	els := doc.FindElements(path)
	switch len(els) {
	case 1:
		return els[0], nil
	case 0:
		return nil, fmt.Errorf("%s: no element matches %s: %w", op, path, ErrMissingElement)
	default:
		return nil, fmt.Errorf("%s: %d elements match %s, want one: %w", op, len(els), path, ErrMissingElement)
	}
}
