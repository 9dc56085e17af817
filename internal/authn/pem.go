package authn

import (
	"fmt"
	"strings"
)

const (
	pemHeader = "-----BEGIN CERTIFICATE-----"
	pemFooter = "-----END CERTIFICATE-----"
)

// CanonicalPEM rewrites a certificate whose line breaks were flattened to
// spaces (as happens when it travels in a header) back into the standard
// layout: header, one base64 run per line, footer.
func CanonicalPEM(pem string) (string, error) {
	pem = strings.TrimSpace(pem)
	if !strings.HasPrefix(pem, pemHeader) || !strings.HasSuffix(pem, pemFooter) || len(pem) < len(pemHeader)+len(pemFooter) {
		return "", fmt.Errorf("%w: certificate header or footer missing", ErrMalformedInput)
	}

	body := pem[len(pemHeader) : len(pem)-len(pemFooter)]
	tokens := strings.Fields(body)
	if len(tokens) == 0 {
		return "", fmt.Errorf("%w: certificate body is empty", ErrMalformedInput)
	}

	return pemHeader + "\n" + strings.Join(tokens, "\n") + "\n" + pemFooter, nil
}
