package samlidp

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Lifetimes of the windows derived from the single capture time of a build.
const (
	clockSkew                   = 5 * time.Second
	assertionLifetime           = time.Hour
	subjectConfirmationLifetime = 3 * time.Minute
)

type responseOptions struct {
	clock     clockwork.Clock
	encryptor Encryptor
}

func responseOptionsDefault() responseOptions {
	return responseOptions{
		clock:     clockwork.NewRealClock(),
		encryptor: XMLEncEncryptor{},
	}
}

func getResponseOptions(opt ...Option) responseOptions {
	opts := responseOptionsDefault()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithClock changes the clock used when capturing the issue instant of a
// response. All derived validity windows are computed from that one instant.
func WithClock(clock clockwork.Clock) Option {
	return func(o interface{}) {
		if o, ok := o.(*responseOptions); ok {
			o.clock = clock
		}
	}
}

// WithEncryptor replaces the delegate used to encrypt the assertion when
// ResponseRequest.EncryptAssertion is set.
func WithEncryptor(e Encryptor) Option {
	return func(o interface{}) {
		if o, ok := o.(*responseOptions); ok {
			o.encryptor = e
		}
	}
}

// BuildResponse produces a complete, signed SAML v2.0 response document for
// the given request. The document's assertion carries an enveloped signature
// whose digest covers the exclusive-canonicalized assertion subtree. When
// the request asks for encryption, the assertion is replaced with an
// EncryptedAssertion and the plain form is never returned.
//
// The build runs four ordered stages (assemble, digest, sign, encrypt), each
// consuming the serialized output of the previous one. Builds share no state;
// concurrent calls are safe.
//
// Options:
// - WithClock
// - WithEncryptor
func BuildResponse(req *ResponseRequest, opt ...Option) (string, error) {
	const op = "samlidp.BuildResponse"

	if req == nil {
		return "", fmt.Errorf("%s: no response request provided: %w", op, ErrInvalidParameter)
	}

	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("%s: invalid response request: %w", op, err)
	}

	key, err := parseSigningKey(req.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	certDER, err := parseCertificate(req.Certificate)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	opts := getResponseOptions(opt...)
	now := opts.clock.Now().UTC()

	responseID, err := generateID()
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate response ID: %w", op, err)
	}

	assertionID, err := generateID()
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate assertion ID: %w", op, err)
	}

	assembled, err := assembleResponse(req, certDER, responseID, assertionID, now)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	digested, err := setDigest(assembled, req.DigestAlgorithm, assertionID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	signed, err := setSignature(digested, req.DigestAlgorithm, key)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if !req.EncryptAssertion {
		return signed, nil
	}

	encrypted, err := encryptAssertion(signed, certDER, opts.encryptor)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return encrypted, nil
}
