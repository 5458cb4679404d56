package security

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"os"
	"strings"

	pkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/cluster1-arrowcolony/arrowhead-go/core"
)

// TrustContext holds a system's private key, certificate chain and trusted
// roots. It is loaded once at startup and read-only afterwards, shared by
// the consumer and provider transport roles.
type TrustContext struct {
	certificate tls.Certificate
	leaf        *x509.Certificate
	roots       *x509.CertPool
	commonName  string
	systemName  string
}

// Load reads a PKCS#12 keystore and a PEM truststore and builds a
// TrustContext. Keystore failures (bad file, wrong password, missing key or
// certificate, unparsable common name) return a *CertificateError;
// truststore failures return a *TrustError.
func Load(keystorePath, password, truststorePath string) (*TrustContext, error) {
	p12, err := os.ReadFile(keystorePath)
	if err != nil {
		return nil, &CertificateError{Path: keystorePath, Err: err}
	}

	key, leaf, chain, err := pkcs12.DecodeChain(p12, password)
	if err != nil {
		return nil, &CertificateError{Path: keystorePath, Err: err}
	}
	if key == nil || leaf == nil {
		return nil, &CertificateError{Path: keystorePath, Err: errors.New("keystore holds no private key and certificate")}
	}

	cn := leaf.Subject.CommonName
	if cn == "" {
		return nil, &CertificateError{Path: keystorePath, Err: errors.New("leaf certificate has no subject common name")}
	}

	roots, err := loadTruststore(truststorePath)
	if err != nil {
		return nil, err
	}

	cert := tls.Certificate{
		Certificate: make([][]byte, 0, 1+len(chain)),
		PrivateKey:  key,
		Leaf:        leaf,
	}
	cert.Certificate = append(cert.Certificate, leaf.Raw)
	for _, c := range chain {
		cert.Certificate = append(cert.Certificate, c.Raw)
	}

	return &TrustContext{
		certificate: cert,
		leaf:        leaf,
		roots:       roots,
		commonName:  cn,
		// Arrowhead common names look like system.cloud.operator.arrowhead.eu;
		// the first label is the system name.
		systemName: strings.SplitN(cn, ".", 2)[0],
	}, nil
}

func loadTruststore(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &TrustError{Path: path, Err: err}
	}

	pool := x509.NewCertPool()
	count := 0
	for rest := data; ; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, &TrustError{Path: path, Err: err}
		}
		pool.AddCert(cert)
		count++
	}
	if count == 0 {
		return nil, &TrustError{Path: path, Err: errors.New("no certificates in truststore")}
	}
	return pool, nil
}

// CommonName returns the subject common name of the leaf certificate.
func (t *TrustContext) CommonName() string { return t.commonName }

// SystemName returns the first label of the common name, which names the
// system within its local cloud.
func (t *TrustContext) SystemName() string { return t.systemName }

// Identity combines the certificate-bound system name with the address and
// port the system is reachable on.
func (t *TrustContext) Identity(address string, port int) core.Identity {
	return core.Identity{SystemName: t.systemName, Address: address, Port: port}
}

// Leaf returns the leaf certificate.
func (t *TrustContext) Leaf() *x509.Certificate { return t.leaf }

// AuthenticationInfo returns the base64 DER form of the leaf's public key,
// which the registry stores as the system's authentication info.
func (t *TrustContext) AuthenticationInfo() string {
	der, err := x509.MarshalPKIXPublicKey(t.leaf.PublicKey)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(der)
}

// ClientTLSConfig presents the loaded certificate chain and verifies the
// remote peer against the trust set.
func (t *TrustContext) ClientTLSConfig() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{t.certificate},
		RootCAs:      t.roots,
		MinVersion:   tls.VersionTLS12,
	}
}

// ServerTLSConfig additionally requires and verifies client certificates
// against the same trust set, making the handshake mutual.
func (t *TrustContext) ServerTLSConfig() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{t.certificate},
		ClientCAs:    t.roots,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS12,
	}
}
