package samlidp

import "errors"

var (
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrUnsupportedAlgorithm = errors.New("unsupported digest algorithm")
	ErrInvalidCertificate   = errors.New("invalid certificate")
	ErrInvalidPrivateKey    = errors.New("invalid private key")
	ErrMissingElement       = errors.New("missing element")
)
