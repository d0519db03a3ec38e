package transport

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	givcerrors "github.com/tiiuae/ghaf-givc/internal/obs/errors"
)

// LoadTLSConfig reads the mTLS material from PEM files. An empty caPath
// falls back to the system roots (Roots stays nil).
func LoadTLSConfig(certPath, keyPath, caPath string) (*TLSConfig, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, givcerrors.Wrap(givcerrors.InvalidArgument, "load keypair", err)
	}
	cfg := &TLSConfig{Cert: cert}
	if caPath != "" {
		pem, err := os.ReadFile(caPath)
		if err != nil {
			return nil, givcerrors.Wrap(givcerrors.InvalidArgument, "read CA certificate", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, givcerrors.New(givcerrors.InvalidArgument, "no certificates parsed from "+caPath)
		}
		cfg.Roots = pool
	}
	return cfg, nil
}
