package mtls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	stdtls "crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"authzbff/internal/auth"
	"authzbff/internal/observability/logging"
	"authzbff/internal/observability/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCA struct {
	cert *x509.Certificate
	key  *ecdsa.PrivateKey
	pool *x509.CertPool
}

func newTestCA(t *testing.T) *testCA {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	pool := x509.NewCertPool()
	pool.AddCert(cert)
	return &testCA{cert: cert, key: key, pool: pool}
}

func (ca *testCA) issue(t *testing.T, commonName string, dnsNames ...string) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: commonName},
		DNSNames:     dnsNames,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.cert, &key.PublicKey, ca.key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func newAuthenticator(ca *testCA, allowDNSName bool) *Authenticator {
	return &Authenticator{
		logger:       logging.NewNopLogger(),
		metrics:      metrics.NewCollector("test"),
		enabled:      true,
		authCAs:      ca.pool,
		allowDNSName: allowDNSName,
	}
}

func serve(a *Authenticator, cert *x509.Certificate) (*httptest.ResponseRecorder, *auth.Identity) {
	var seen *auth.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cert != nil {
		req.TLS = &stdtls.ConnectionState{PeerCertificates: []*x509.Certificate{cert}}
	}
	rec := httptest.NewRecorder()
	a.GetMiddleware(next).ServeHTTP(rec, req)
	return rec, seen
}

func TestValidCertificateSetsIdentity(t *testing.T) {
	ca := newTestCA(t)
	rec, identity := serve(newAuthenticator(ca, false), ca.issue(t, "alice"))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, identity)
	assert.Equal(t, "alice", identity.Subject)
	assert.Equal(t, "mtls", identity.Provider)
}

func TestNoCertificatePassesThrough(t *testing.T) {
	rec, identity := serve(newAuthenticator(newTestCA(t), false), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, identity)
}

func TestUntrustedCertificateRejected(t *testing.T) {
	trusted := newTestCA(t)
	other := newTestCA(t)

	rec, identity := serve(newAuthenticator(trusted, false), other.issue(t, "mallory"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, identity)
}

func TestDNSNameFallback(t *testing.T) {
	ca := newTestCA(t)
	cert := ca.issue(t, "", "svc.internal")

	rec, _ := serve(newAuthenticator(ca, false), cert)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, identity := serve(newAuthenticator(ca, true), cert)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, identity)
	assert.Equal(t, "svc.internal", identity.Subject)
}

func TestNewRequiresCAPaths(t *testing.T) {
	_, err := New(Config{Enabled: true}, logging.NewNopLogger(), metrics.NewCollector("test"))
	assert.Error(t, err)

	a, err := New(Config{Enabled: false}, logging.NewNopLogger(), metrics.NewCollector("test"))
	require.NoError(t, err)
	assert.Equal(t, "mtls", a.Name())
}
