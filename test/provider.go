// Package testprovider runs an identity provider double for tests of
// service-provider-side SAML consumption. Its login endpoints answer any
// authentication request with a real, signed (and optionally encrypted)
// response built by the samlidp pipeline, delivered through the HTTP-POST
// binding.
package testprovider

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"encoding/pem"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/beevik/etree"
	dsigtypes "github.com/russellhaering/goxmldsig/types"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/samlidp"
	"github.com/hashicorp/samlidp/models/core"
	"github.com/hashicorp/samlidp/models/metadata"
)

type providerOptions struct {
	nameID           string
	attributes       []samlidp.Attribute
	digestAlgorithm  samlidp.DigestAlgorithm
	encryptAssertion bool
}

func providerOptionsDefault() providerOptions {
	return providerOptions{
		nameID: "alice@example.com",
		attributes: []samlidp.Attribute{
			{Name: "email", Value: "alice@example.com"},
		},
		digestAlgorithm: samlidp.DigestSHA256,
	}
}

func getProviderOptions(opt ...samlidp.Option) providerOptions {
	opts := providerOptionsDefault()
	samlidp.ApplyOpts(&opts, opt...)
	return opts
}

// WithUser changes the subject and attribute statement of the responses the
// provider issues.
func WithUser(nameID string, attributes []samlidp.Attribute) samlidp.Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok {
			o.nameID = nameID
			o.attributes = attributes
		}
	}
}

// WithDigestAlgorithm changes the digest and signature hash of the issued
// responses.
func WithDigestAlgorithm(alg samlidp.DigestAlgorithm) samlidp.Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok {
			o.digestAlgorithm = alg
		}
	}
}

// WithEncryptedAssertion makes the provider encrypt the assertion of every
// issued response with its own certificate.
func WithEncryptedAssertion() samlidp.Option {
	return func(o interface{}) {
		if o, ok := o.(*providerOptions); ok {
			o.encryptAssertion = true
		}
	}
}

type TestProvider struct {
	t      *testing.T
	server *httptest.Server

	opts providerOptions

	keyPEM  string
	certPEM string
}

// StartTestProvider starts the provider with a fresh signing key and
// self-signed certificate. The certificate is published via the metadata
// endpoint so consumers can bootstrap trust from it.
//
// Options:
// - WithUser
// - WithDigestAlgorithm
// - WithEncryptedAssertion
func StartTestProvider(t *testing.T, opt ...samlidp.Option) *TestProvider {
	t.Helper()

	keyPEM, certPEM := samlidp.TestGenerateKeyAndCert(t)

	provider := &TestProvider{
		t:       t,
		opts:    getProviderOptions(opt...),
		keyPEM:  keyPEM,
		certPEM: certPEM,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/saml/metadata", provider.MetadataHandler)
	mux.HandleFunc("/saml/login/post", provider.LoginHandlerPost)
	mux.HandleFunc("/saml/login/redirect", provider.LoginHandlerRedirect)

	server := httptest.NewUnstartedServer(mux)
	provider.server = server

	server.Start()

	return provider
}

func (p *TestProvider) Close() {
	p.server.Close()
}

func (p *TestProvider) ServerURL() string {
	return p.server.URL
}

// Issuer is the entity ID the provider issues responses under.
func (p *TestProvider) Issuer() string {
	return p.server.URL
}

// Certificate returns the PEM encoded signing certificate.
func (p *TestProvider) Certificate() string {
	return p.certPEM
}

// PrivateKey returns the PEM encoded signing key. Tests use it to decrypt
// encrypted assertions.
func (p *TestProvider) PrivateKey() string {
	return p.keyPEM
}

// Metadata returns the IDP metadata document describing the provider.
func (p *TestProvider) Metadata() *metadata.EntityDescriptorIDPSSO {
	block, _ := pem.Decode([]byte(p.certPEM))

	keyInfo := metadata.KeyInfo{}
	keyInfo.KeyInfo = dsigtypes.KeyInfo{
		X509Data: dsigtypes.X509Data{
			X509Certificates: []dsigtypes.X509Certificate{
				{Data: base64.StdEncoding.EncodeToString(block.Bytes)},
			},
		},
	}

	return &metadata.EntityDescriptorIDPSSO{
		EntityID: p.Issuer(),
		IDPSSODescriptor: []*metadata.IDPSSODescriptor{
			{
				WantAuthnRequestsSigned:    false,
				ProtocolSupportEnumeration: metadata.ProtocolSupportEnumerationProtocol,
				KeyDescriptor: []metadata.KeyDescriptor{
					{Use: metadata.KeyTypeSigning, KeyInfo: keyInfo},
				},
				NameIDFormat: []core.NameIDFormat{core.NameIDFormatEmail},
				SingleSignOnService: []metadata.Endpoint{
					{
						Binding:  core.ServiceBindingHTTPPost,
						Location: fmt.Sprintf("%s/saml/login/post", p.server.URL),
					},
					{
						Binding:  core.ServiceBindingHTTPRedirect,
						Location: fmt.Sprintf("%s/saml/login/redirect", p.server.URL),
					},
				},
			},
		},
	}
}

func (p *TestProvider) MetadataHandler(w http.ResponseWriter, _ *http.Request) {
	p.t.Helper()
	r := require.New(p.t)

	err := xml.NewEncoder(w).Encode(p.Metadata())
	r.NoError(err)
}

// LoginHandlerPost answers an HTTP-POST binding authentication request.
func (p *TestProvider) LoginHandlerPost(w http.ResponseWriter, req *http.Request) {
	p.t.Helper()
	r := require.New(p.t)

	r.NoError(req.ParseForm())

	decoded, err := base64.StdEncoding.DecodeString(req.PostFormValue("SAMLRequest"))
	r.NoError(err)

	p.respond(w, decoded, req.PostFormValue("RelayState"))
}

// LoginHandlerRedirect answers an HTTP-Redirect binding authentication
// request, which arrives deflate-compressed in the query string.
func (p *TestProvider) LoginHandlerRedirect(w http.ResponseWriter, req *http.Request) {
	p.t.Helper()
	r := require.New(p.t)

	decoded, err := base64.StdEncoding.DecodeString(req.URL.Query().Get("SAMLRequest"))
	r.NoError(err)

	fr := flate.NewReader(bytes.NewReader(decoded))
	defer fr.Close()

	inflated, err := io.ReadAll(fr)
	r.NoError(err)

	p.respond(w, inflated, req.URL.Query().Get("RelayState"))
}

func (p *TestProvider) respond(w http.ResponseWriter, authnRequest []byte, relayState string) {
	p.t.Helper()
	r := require.New(p.t)

	requestID, acsURL := parseAuthnRequest(authnRequest)
	r.NotEmpty(requestID, "authn request carries no ID")
	r.NotEmpty(acsURL, "authn request carries no AssertionConsumerServiceURL")

	response, err := samlidp.BuildResponse(&samlidp.ResponseRequest{
		NameID:           p.opts.nameID,
		IssuerURI:        p.Issuer(),
		ACSURL:           acsURL,
		RequestID:        requestID,
		UserAttributes:   p.opts.attributes,
		DigestAlgorithm:  p.opts.digestAlgorithm,
		Certificate:      []byte(p.certPEM),
		PrivateKey:       []byte(p.keyPEM),
		EncryptAssertion: p.opts.encryptAssertion,
	})
	r.NoError(err)

	page, err := samlidp.ResponsePostBinding(
		acsURL,
		base64.StdEncoding.EncodeToString([]byte(response)),
		relayState,
	)
	r.NoError(err)

	samlidp.WritePostBindingHeader(w)
	_, err = w.Write(page)
	r.NoError(err)
}

// parseAuthnRequest pulls the request ID and the assertion consumer service
// URL out of an authentication request document.
func parseAuthnRequest(raw []byte) (requestID, acsURL string) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return "", ""
	}

	root := doc.Root()
	if root == nil {
		return "", ""
	}

	return root.SelectAttrValue("ID", ""), root.SelectAttrValue("AssertionConsumerServiceURL", "")
}
