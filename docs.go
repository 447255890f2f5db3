// samlidp produces synthetic, signed SAML v2.0 responses for testing the
// service provider side of a SAML integration. BuildResponse turns a
// ResponseRequest into a complete response document whose assertion carries
// an enveloped XML signature, optionally encrypted for the signing
// certificate. The test subpackage runs the builder as an HTTP identity
// provider double.
//
// See README.md
package samlidp
