// internal/tls/utils.go
package tls

import (
	"crypto/x509"
	"fmt"
	"time"

	"authzbff/internal/observability/logging"
)

// VerifyCertificate verifies a client certificate against a CA pool
func VerifyCertificate(cert *x509.Certificate, caPool *x509.CertPool, logger *logging.Logger) error {
	opts := x509.VerifyOptions{
		Roots:         caPool,
		CurrentTime:   time.Now(),
		Intermediates: x509.NewCertPool(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}

	if _, err := cert.Verify(opts); err != nil {
		if logger != nil {
			logger.Error("Client certificate verification failed", logging.Err(err))
		}
		return fmt.Errorf("client certificate verification failed: %w", err)
	}
	return nil
}

// ExtractSubject returns the certificate Common Name, or the first DNS name
// when allowDNSName is set and the Common Name is empty
func ExtractSubject(cert *x509.Certificate, allowDNSName bool) (string, error) {
	if cert.Subject.CommonName != "" {
		return cert.Subject.CommonName, nil
	}
	if allowDNSName && len(cert.DNSNames) > 0 {
		return cert.DNSNames[0], nil
	}
	return "", fmt.Errorf("certificate has no Common Name or usable DNS name")
}
