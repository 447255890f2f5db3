package samlidp

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/hashicorp/samlidp/models/core"
)

const (
	xmlnsSAMLP = "urn:oasis:names:tc:SAML:2.0:protocol"
	xmlnsSAML  = "urn:oasis:names:tc:SAML:2.0:assertion"
	xmlnsDS    = "http://www.w3.org/2000/09/xmldsig#"
)

// instant renders a timestamp the way SAML consumers parse it.
func instant(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// assembleResponse builds the complete response document. The contained
// signature is a skeleton: its DigestValue and SignatureValue elements are
// empty placeholders, filled by the digest and signature stages. Child order
// within the assertion is fixed; consumers validate it against the schema.
func assembleResponse(req *ResponseRequest, certDER []byte, responseID, assertionID string, now time.Time) (string, error) {
	const op = "samlidp.assembleResponse"

	doc := etree.NewDocument()

	resp := doc.CreateElement("samlp:Response")
	resp.CreateAttr("xmlns:samlp", xmlnsSAMLP)
	resp.CreateAttr("xmlns:saml", xmlnsSAML)
	resp.CreateAttr("ID", responseID)
	resp.CreateAttr("Version", core.SAMLVersion2)
	resp.CreateAttr("IssueInstant", instant(now))
	resp.CreateAttr("Destination", req.ACSURL)
	resp.CreateAttr("Consent", string(core.ConsentUnspecified))
	resp.CreateAttr("InResponseTo", req.RequestID)

	resp.CreateElement("saml:Issuer").SetText(req.IssuerURI)

	status := resp.CreateElement("samlp:Status")
	status.CreateElement("samlp:StatusCode").
		CreateAttr("Value", string(core.StatusCodeSuccess))

	sig, err := signatureSkeleton(req.DigestAlgorithm, assertionID, certDER)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	resp.AddChild(assertionElement(req, sig, responseID, assertionID, now))

	return doc.WriteToString()
}

// assertionElement builds the assertion subtree in schema order: Issuer,
// Signature, Subject, Conditions, AttributeStatement, AuthnStatement.
func assertionElement(req *ResponseRequest, sig *etree.Element, responseID, assertionID string, now time.Time) *etree.Element {
	assertion := etree.NewElement("saml:Assertion")
	assertion.CreateAttr("xmlns:saml", xmlnsSAML)
	assertion.CreateAttr("ID", assertionID)
	assertion.CreateAttr("Version", core.SAMLVersion2)
	assertion.CreateAttr("IssueInstant", instant(now))

	issuer := assertion.CreateElement("saml:Issuer")
	issuer.CreateAttr("Format", string(core.NameIDFormatEntity))
	issuer.SetText(req.IssuerURI)

	assertion.AddChild(sig)

	subject := assertion.CreateElement("saml:Subject")

	nameID := subject.CreateElement("saml:NameID")
	nameID.CreateAttr("Format", string(core.NameIDFormatEmail))
	nameID.SetText(req.NameID)

	confirmation := subject.CreateElement("saml:SubjectConfirmation")
	confirmation.CreateAttr("Method", string(core.ConfirmationMethodBearer))

	confirmationData := confirmation.CreateElement("saml:SubjectConfirmationData")
	confirmationData.CreateAttr("InResponseTo", req.RequestID)
	confirmationData.CreateAttr("NotOnOrAfter", instant(now.Add(subjectConfirmationLifetime)))
	confirmationData.CreateAttr("Recipient", req.ACSURL)

	conditions := assertion.CreateElement("saml:Conditions")
	conditions.CreateAttr("NotBefore", instant(now.Add(-clockSkew)))
	conditions.CreateAttr("NotOnOrAfter", instant(now.Add(assertionLifetime)))
	conditions.CreateElement("saml:AudienceRestriction").
		CreateElement("saml:Audience").
		SetText(req.IssuerURI)

	attrStatement := assertion.CreateElement("saml:AttributeStatement")
	for _, attr := range req.UserAttributes {
		attrEl := attrStatement.CreateElement("saml:Attribute")
		attrEl.CreateAttr("Name", attr.Name)
		attrEl.CreateElement("saml:AttributeValue").SetText(attr.Value)
	}

	authnStatement := assertion.CreateElement("saml:AuthnStatement")
	authnStatement.CreateAttr("AuthnInstant", instant(now))
	authnStatement.CreateAttr("SessionIndex", responseID)
	authnStatement.CreateElement("saml:AuthnContext").
		CreateElement("saml:AuthnContextClassRef").
		SetText(string(core.AuthnContextPassword))

	return assertion
}

// signatureSkeleton builds the enveloped signature template. The Reference
// URI ties the signature to the assertion by its ID attribute; a verifier
// resolves the signed element through it.
func signatureSkeleton(alg DigestAlgorithm, assertionID string, certDER []byte) (*etree.Element, error) {
	const op = "samlidp.signatureSkeleton"

	signatureMethod, err := alg.SignatureMethod()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	digestMethod, err := alg.DigestMethod()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sig := etree.NewElement("ds:Signature")
	sig.CreateAttr("xmlns:ds", xmlnsDS)

	signedInfo := sig.CreateElement("ds:SignedInfo")
	signedInfo.CreateElement("ds:CanonicalizationMethod").
		CreateAttr("Algorithm", string(dsig.CanonicalXML10ExclusiveAlgorithmId))
	signedInfo.CreateElement("ds:SignatureMethod").
		CreateAttr("Algorithm", signatureMethod)

	reference := signedInfo.CreateElement("ds:Reference")
	reference.CreateAttr("URI", "#"+assertionID)

	transforms := reference.CreateElement("ds:Transforms")
	transforms.CreateElement("ds:Transform").
		CreateAttr("Algorithm", string(dsig.EnvelopedSignatureAltorithmId))
	transforms.CreateElement("ds:Transform").
		CreateAttr("Algorithm", string(dsig.CanonicalXML10ExclusiveAlgorithmId))

	reference.CreateElement("ds:DigestMethod").
		CreateAttr("Algorithm", digestMethod)
	reference.CreateElement("ds:DigestValue")

	sig.CreateElement("ds:SignatureValue")

	sig.CreateElement("ds:KeyInfo").
		CreateElement("ds:X509Data").
		CreateElement("ds:X509Certificate").
		SetText(base64.StdEncoding.EncodeToString(certDER))

	return sig, nil
}
