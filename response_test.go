package samlidp_test

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"encoding/xml"
	"fmt"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/jonboulle/clockwork"
	saml2 "github.com/russellhaering/gosaml2"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/samlidp"
	"github.com/hashicorp/samlidp/models/core"
)

const (
	testIssuer    = "https://idp.test/saml"
	testACSURL    = "http://localhost:8000/saml/acs"
	testRequestID = "request-1234"
	testNameID    = "alice@example.com"
)

func Test_BuildResponse_Structure(t *testing.T) {
	t.Parallel()
	r := require.New(t)

	keyPEM, certPEM := samlidp.TestGenerateKeyAndCert(t)
	at := time.Date(2024, 5, 14, 9, 30, 0, 0, time.UTC)

	signed, err := samlidp.BuildResponse(
		testResponseRequest(keyPEM, certPEM),
		samlidp.WithClock(clockwork.NewFakeClockAt(at)),
	)
	r.NoError(err)

	res := core.Response{}
	r.NoError(xml.Unmarshal([]byte(signed), &res))

	r.True(len(res.ID) > 1)
	r.Equal("_", res.ID[:1])
	r.Equal(core.SAMLVersion2, res.Version)
	r.True(res.IssueInstant.Equal(at))
	r.Equal(testACSURL, res.Destination)
	r.Equal(core.ConsentUnspecified, res.Consent)
	r.Equal(testRequestID, res.InResponseTo)
	r.Equal(testIssuer, res.Issuer.Value)
	r.Equal(core.StatusCodeSuccess, res.Status.StatusCode.Value)

	assertion := res.GetAssertion()
	r.NotNil(assertion)
	r.Equal("_", assertion.ID[:1])
	r.NotEqual(res.ID, assertion.ID)
	r.Equal(core.SAMLVersion2, assertion.Version)
	r.True(assertion.IssueInstant.Equal(at))
	r.Equal(testIssuer, assertion.GetIssuer())

	r.Equal(testNameID, assertion.GetSubject())
	r.Equal(string(core.NameIDFormatEmail), assertion.GetSubjectFormat())

	r.Len(assertion.Subject.SubjectConfirmation, 1)
	confirmation := assertion.Subject.SubjectConfirmation[0]
	r.Equal(core.ConfirmationMethodBearer, confirmation.Method)
	r.Equal(testACSURL, confirmation.SubjectConfirmationData.Recipient)
	r.Equal(testRequestID, confirmation.SubjectConfirmationData.InResponseTo)
	r.True(confirmation.SubjectConfirmationData.NotOnOrAfter.Equal(at.Add(3 * time.Minute)))

	r.True(assertion.Conditions.NotBefore.Equal(at.Add(-5 * time.Second)))
	r.True(assertion.Conditions.NotOnOrAfter.Equal(at.Add(time.Hour)))
	r.Len(assertion.Conditions.AudienceRestriction, 1)
	r.Equal([]string{testIssuer}, assertion.Conditions.AudienceRestriction[0].Audience)

	r.True(assertion.AuthnStatement.AuthnInstant.Equal(at))
	r.Equal(res.ID, assertion.AuthnStatement.SessionIndex)
	r.Equal(
		core.AuthnContextPassword,
		assertion.AuthnStatement.AuthnContext.AuthnContextClassRef,
	)

	// Schema-mandated child order within the assertion.
	doc := parseDoc(t, signed)
	assertionEl := doc.FindElement("//Assertion")
	r.NotNil(assertionEl)

	var order []string
	for _, child := range assertionEl.ChildElements() {
		order = append(order, child.Tag)
	}
	r.Equal(
		[]string{"Issuer", "Signature", "Subject", "Conditions", "AttributeStatement", "AuthnStatement"},
		order,
	)
}

func Test_BuildResponse_ReferenceURI(t *testing.T) {
	t.Parallel()
	r := require.New(t)

	keyPEM, certPEM := samlidp.TestGenerateKeyAndCert(t)

	signed, err := samlidp.BuildResponse(testResponseRequest(keyPEM, certPEM))
	r.NoError(err)

	doc := parseDoc(t, signed)

	assertionID := doc.FindElement("//Assertion").SelectAttrValue("ID", "")
	r.NotEmpty(assertionID)

	reference := doc.FindElement("//Reference")
	r.NotNil(reference)
	r.Equal("#"+assertionID, reference.SelectAttrValue("URI", ""))

	// The embedded certificate matches the signing certificate.
	block, _ := pem.Decode([]byte(certPEM))
	embedded := doc.FindElement("//X509Certificate")
	r.NotNil(embedded)
	r.Equal(base64.StdEncoding.EncodeToString(block.Bytes), embedded.Text())
}

func Test_BuildResponse_Attributes(t *testing.T) {
	t.Parallel()

	keyPEM, certPEM := samlidp.TestGenerateKeyAndCert(t)

	t.Run("order preserved", func(t *testing.T) {
		t.Parallel()
		r := require.New(t)

		req := testResponseRequest(keyPEM, certPEM)
		req.UserAttributes = []samlidp.Attribute{
			{Name: "zz", Value: "last by name"},
			{Name: "email", Value: "alice@example.com"},
			{Name: "groups", Value: "engineering"},
			{Name: "groups", Value: "oncall"},
		}

		signed, err := samlidp.BuildResponse(req)
		r.NoError(err)

		doc := parseDoc(t, signed)

		attrs := doc.FindElements("//AttributeStatement/Attribute")
		r.Len(attrs, 4)
		for i, attr := range attrs {
			r.Equal(req.UserAttributes[i].Name, attr.SelectAttrValue("Name", ""))

			values := attr.ChildElements()
			r.Len(values, 1)
			r.Equal("AttributeValue", values[0].Tag)
			r.Equal(req.UserAttributes[i].Value, values[0].Text())
		}
	})

	t.Run("no attributes", func(t *testing.T) {
		t.Parallel()
		r := require.New(t)

		req := testResponseRequest(keyPEM, certPEM)
		req.UserAttributes = nil

		signed, err := samlidp.BuildResponse(req)
		r.NoError(err)

		doc := parseDoc(t, signed)

		statement := doc.FindElement("//AttributeStatement")
		r.NotNil(statement)
		r.Empty(statement.ChildElements())
	})
}

func Test_BuildResponse_Digest(t *testing.T) {
	t.Parallel()

	keyPEM, certPEM := samlidp.TestGenerateKeyAndCert(t)

	algorithms := []samlidp.DigestAlgorithm{
		samlidp.DigestSHA1,
		samlidp.DigestSHA256,
		samlidp.DigestSHA384,
		samlidp.DigestSHA512,
	}

	for _, alg := range algorithms {
		alg := alg
		t.Run(string(alg), func(t *testing.T) {
			t.Parallel()
			r := require.New(t)

			req := testResponseRequest(keyPEM, certPEM)
			req.DigestAlgorithm = alg

			signed, err := samlidp.BuildResponse(req)
			r.NoError(err)

			doc := parseDoc(t, signed)

			digestMethod, err := alg.DigestMethod()
			r.NoError(err)
			r.Equal(
				digestMethod,
				doc.FindElement("//DigestMethod").SelectAttrValue("Algorithm", ""),
			)

			emitted := doc.FindElement("//DigestValue").Text()
			r.NotEmpty(emitted)

			// Recompute the digest the way a verifier does: drop the
			// enveloped signature, canonicalize the assertion, hash.
			verify := parseDoc(t, signed)
			sig := verify.FindElement("//Signature")
			sig.Parent().RemoveChild(sig)

			canonical, err := dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("").
				Canonicalize(verify.FindElement("//Assertion"))
			r.NoError(err)

			hash, err := alg.Hash()
			r.NoError(err)

			h := hash.New()
			h.Write(canonical)
			r.Equal(base64.StdEncoding.EncodeToString(h.Sum(nil)), emitted)
		})
	}
}

func Test_BuildResponse_Signature(t *testing.T) {
	t.Parallel()

	keyPEM, certPEM := samlidp.TestGenerateKeyAndCert(t)

	algorithms := []samlidp.DigestAlgorithm{
		samlidp.DigestSHA1,
		samlidp.DigestSHA256,
		samlidp.DigestSHA384,
		samlidp.DigestSHA512,
	}

	for _, alg := range algorithms {
		alg := alg
		t.Run(string(alg), func(t *testing.T) {
			t.Parallel()
			r := require.New(t)

			req := testResponseRequest(keyPEM, certPEM)
			req.DigestAlgorithm = alg

			signed, err := samlidp.BuildResponse(req)
			r.NoError(err)

			doc := parseDoc(t, signed)

			signatureMethod, err := alg.SignatureMethod()
			r.NoError(err)
			r.Equal(
				signatureMethod,
				doc.FindElement("//SignatureMethod").SelectAttrValue("Algorithm", ""),
			)

			signature, err := base64.StdEncoding.DecodeString(doc.FindElement("//SignatureValue").Text())
			r.NoError(err)

			// Recompute the signed bytes the way a verifier does: the
			// SignedInfo subtree with the ds declaration it inherits from
			// the enclosing Signature, exclusive-canonicalized.
			signedInfo := doc.FindElement("//SignedInfo").Copy()
			signedInfo.CreateAttr("xmlns:ds", "http://www.w3.org/2000/09/xmldsig#")

			canonical, err := dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("").
				Canonicalize(signedInfo)
			r.NoError(err)

			hash, err := alg.Hash()
			r.NoError(err)
			h := hash.New()
			h.Write(canonical)

			block, _ := pem.Decode([]byte(certPEM))
			cert, err := x509.ParseCertificate(block.Bytes)
			r.NoError(err)

			r.NoError(rsa.VerifyPKCS1v15(cert.PublicKey.(*rsa.PublicKey), hash, h.Sum(nil), signature))
		})
	}
}

func Test_BuildResponse_RepeatedBuilds(t *testing.T) {
	t.Parallel()
	r := require.New(t)

	keyPEM, certPEM := samlidp.TestGenerateKeyAndCert(t)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 14, 9, 30, 0, 0, time.UTC))

	req := testResponseRequest(keyPEM, certPEM)

	first, err := samlidp.BuildResponse(req, samlidp.WithClock(clock))
	r.NoError(err)

	second, err := samlidp.BuildResponse(req, samlidp.WithClock(clock))
	r.NoError(err)

	// Fresh IDs on every build, same structure otherwise.
	firstDoc := parseDoc(t, first)
	secondDoc := parseDoc(t, second)
	r.NotEqual(
		firstDoc.Root().SelectAttrValue("ID", ""),
		secondDoc.Root().SelectAttrValue("ID", ""),
	)
	r.Equal(structureOf(firstDoc.Root()), structureOf(secondDoc.Root()))
}

func Test_BuildResponse_ConsumerAcceptance(t *testing.T) {
	t.Parallel()

	keyPEM, certPEM := samlidp.TestGenerateKeyAndCert(t)

	algorithms := []samlidp.DigestAlgorithm{
		samlidp.DigestSHA1,
		samlidp.DigestSHA256,
		samlidp.DigestSHA384,
		samlidp.DigestSHA512,
	}

	for _, alg := range algorithms {
		alg := alg
		t.Run(string(alg), func(t *testing.T) {
			t.Parallel()
			r := require.New(t)

			req := testResponseRequest(keyPEM, certPEM)
			req.DigestAlgorithm = alg

			signed, err := samlidp.BuildResponse(req)
			r.NoError(err)

			sp := testServiceProvider(t, certPEM)

			res, err := sp.ValidateEncodedResponse(
				base64.StdEncoding.EncodeToString([]byte(signed)),
			)
			r.NoError(err)

			r.Len(res.Assertions, 1)
			r.Equal(testNameID, res.Assertions[0].Subject.NameID.Value)
			r.Equal(testRequestID, res.InResponseTo)
		})
	}
}

func Test_BuildResponse_Errors(t *testing.T) {
	t.Parallel()

	keyPEM, certPEM := samlidp.TestGenerateKeyAndCert(t)

	cases := []struct {
		name            string
		req             *samlidp.ResponseRequest
		wantErrIs       error
		wantErrContains string
	}{
		{
			name:            "nil request",
			req:             nil,
			wantErrIs:       samlidp.ErrInvalidParameter,
			wantErrContains: "no response request provided",
		},
		{
			name: "invalid request",
			req: func() *samlidp.ResponseRequest {
				req := testResponseRequest(keyPEM, certPEM)
				req.NameID = ""
				return req
			}(),
			wantErrIs:       samlidp.ErrInvalidParameter,
			wantErrContains: "invalid response request",
		},
		{
			name: "unsupported algorithm",
			req: func() *samlidp.ResponseRequest {
				req := testResponseRequest(keyPEM, certPEM)
				req.DigestAlgorithm = "MD5"
				return req
			}(),
			wantErrIs: samlidp.ErrUnsupportedAlgorithm,
		},
		{
			name: "malformed certificate",
			req: func() *samlidp.ResponseRequest {
				req := testResponseRequest(keyPEM, certPEM)
				req.Certificate = []byte("garbage")
				return req
			}(),
			wantErrIs: samlidp.ErrInvalidCertificate,
		},
		{
			name: "malformed private key",
			req: func() *samlidp.ResponseRequest {
				req := testResponseRequest(keyPEM, certPEM)
				req.PrivateKey = []byte("garbage")
				return req
			}(),
			wantErrIs: samlidp.ErrInvalidPrivateKey,
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			r := require.New(t)

			got, err := samlidp.BuildResponse(c.req)
			r.Empty(got)
			r.ErrorIs(err, c.wantErrIs)
			if c.wantErrContains != "" {
				r.ErrorContains(err, c.wantErrContains)
			}
		})
	}
}

func testResponseRequest(keyPEM, certPEM string) *samlidp.ResponseRequest {
	return &samlidp.ResponseRequest{
		NameID:    testNameID,
		IssuerURI: testIssuer,
		ACSURL:    testACSURL,
		RequestID: testRequestID,
		UserAttributes: []samlidp.Attribute{
			{Name: "email", Value: "alice@example.com"},
			{Name: "groups", Value: "engineering"},
		},
		DigestAlgorithm: samlidp.DigestSHA256,
		Certificate:     []byte(certPEM),
		PrivateKey:      []byte(keyPEM),
	}
}

// testServiceProvider configures a standards-compliant SAML consumer
// trusting the given certificate, matching the fixed test request fields.
func testServiceProvider(t *testing.T, certPEM string) *saml2.SAMLServiceProvider {
	t.Helper()
	r := require.New(t)

	block, _ := pem.Decode([]byte(certPEM))
	cert, err := x509.ParseCertificate(block.Bytes)
	r.NoError(err)

	return &saml2.SAMLServiceProvider{
		IdentityProviderIssuer:      testIssuer,
		AssertionConsumerServiceURL: testACSURL,
		AudienceURI:                 testIssuer,
		IDPCertificateStore: &dsig.MemoryX509CertificateStore{
			Roots: []*x509.Certificate{cert},
		},
	}
}

func testCertDER(t *testing.T, certPEM string) []byte {
	t.Helper()

	block, _ := pem.Decode([]byte(certPEM))
	require.NotNil(t, block)

	return block.Bytes
}

func parseDoc(t *testing.T, s string) *etree.Document {
	t.Helper()

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(s))

	return doc
}

// structureOf flattens an element tree into tag and attribute names,
// ignoring values. Two builds of the same request agree on this shape.
func structureOf(el *etree.Element) []string {
	entry := el.Tag
	for _, attr := range el.Attr {
		entry += fmt.Sprintf(" @%s", attr.Key)
	}

	out := []string{entry}
	for _, child := range el.ChildElements() {
		out = append(out, structureOf(child)...)
	}

	return out
}
