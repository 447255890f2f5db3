package samlidp

import (
	"bytes"
	"fmt"
	"net/http"
	"text/template"
)

const postBindingScriptSha256 = "EMRaSa/CaM1z/JUgsUgDZeXBrArL1zk2wT14DcdbKXQ="

var postBindingTempl = template.Must(
	template.New("post-binding").Parse(`<html><body><form method="post" action="{{.Destination}}" id="SAMLResponseForm"><input type="hidden" name="SAMLResponse" value="{{.SAMLResponse}}" />{{if .RelayState}}<input type="hidden" name="RelayState" value="{{.RelayState}}" />{{end}}<input id="SAMLSubmitButton" type="submit" value="Continue" /></form><script>document.getElementById("SAMLResponseForm").submit();</script></body></html>`),
)

// ResponsePostBinding renders the self-submitting HTTP-POST binding document
// that delivers a base64 encoded SAMLResponse to the given destination.
func ResponsePostBinding(destination, samlResponse, relayState string) ([]byte, error) {
	buf := bytes.Buffer{}

	if err := postBindingTempl.Execute(&buf, map[string]string{
		"Destination":  destination,
		"SAMLResponse": samlResponse,
		"RelayState":   relayState,
	}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// WritePostBindingHeader sets the headers for the HTTP-POST binding
// document, allowing only its own submit script to run.
func WritePostBindingHeader(w http.ResponseWriter) {
	w.Header().
		Add("Content-Security-Policy", fmt.Sprintf("script-src 'sha256-%s'", postBindingScriptSha256))
	w.Header().Add("Content-type", "text/html")
}
