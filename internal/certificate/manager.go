// Package certificate holds the client certificate the device uses to fetch the bootstrap script.
package certificate

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

const (
	ecPrivateKeyBlockType    = "EC PRIVATE KEY"
	rsaPrivateKeyBlockType   = "RSA PRIVATE KEY"
	pkcs8PrivateKeyBlockType = "PRIVATE KEY"

	// TerminAttrCertificateFile and TerminAttrKeyFile are used when no certificate is configured.
	TerminAttrCertificateFile = "/persist/secure/ssl/terminattr/primary/certs/client.crt"
	TerminAttrKeyFile         = "/persist/secure/ssl/terminattr/primary/keys/client.key"
)

var (
	ErrInvalidCertificate = errors.New("invalid certificate")
	ErrInvalidPrivateKey  = errors.New("invalid private key")
)

type Manager struct {
	cert       *x509.Certificate
	privateKey crypto.PrivateKey
	rawCert    []byte
	rawKey     []byte
	rootCA     *x509.CertPool
}

// Load reads the ca root, the certificate and the private key from disk.
// An empty caRoot keeps the system pool only.
func Load(caRoot, certFile, keyFile string) (*Manager, error) {
	var roots [][]byte
	if caRoot != "" {
		data, err := os.ReadFile(caRoot)
		if err != nil {
			return nil, fmt.Errorf("cannot read ca root: %w", err)
		}
		roots = append(roots, data)
	}

	cert, err := os.ReadFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("cannot read certificate: %w", err)
	}

	privateKey, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("cannot read private key: %w", err)
	}

	return New(roots, cert, privateKey)
}

// Exists returns true if both files are present.
func Exists(certFile, keyFile string) bool {
	for _, f := range []string{certFile, keyFile} {
		if info, err := os.Stat(f); err != nil || info.IsDir() {
			return false
		}
	}
	return true
}

func New(caRootBlock [][]byte, cert, privateKey []byte) (*Manager, error) {
	pool, err := x509.SystemCertPool()
	if err != nil {
		return nil, fmt.Errorf("cannot copy system certificate pool: %w", err)
	}
	for _, data := range caRootBlock {
		if !pool.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf("%w: no certificate found in ca root", ErrInvalidCertificate)
		}
	}

	c := &Manager{
		rootCA: pool,
	}

	if err := c.SetCertificate(cert, privateKey); err != nil {
		return nil, err
	}

	return c, nil
}

// SetCertificate sets a new certificate and a private key.
func (c *Manager) SetCertificate(cert, privateKey []byte) error {
	certPem, _ := pem.Decode(cert)
	if certPem == nil {
		return fmt.Errorf("%w: cannot decode certificate from pem", ErrInvalidCertificate)
	}

	newCert, err := x509.ParseCertificate(certPem.Bytes)
	if err != nil {
		return fmt.Errorf("%w: cannot parse certificate: %s", ErrInvalidCertificate, err)
	}

	block, _ := pem.Decode(privateKey)
	if block == nil {
		return fmt.Errorf("%w: cannot decode private key from pem", ErrInvalidPrivateKey)
	}

	var key crypto.PrivateKey

	switch block.Type {
	case ecPrivateKeyBlockType:
		key, err = x509.ParseECPrivateKey(block.Bytes)
	case rsaPrivateKeyBlockType:
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case pkcs8PrivateKeyBlockType:
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	default:
		err = fmt.Errorf("unknown block type '%s'", block.Type)
	}

	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPrivateKey, err)
	}

	c.cert = newCert
	c.privateKey = key
	c.rawCert = cert
	c.rawKey = privateKey

	return nil
}

func (c *Manager) TLSConfig() (*tls.Config, error) {
	cert, err := tls.X509KeyPair(c.rawCert, c.rawKey)
	if err != nil {
		return nil, fmt.Errorf("cannot create x509 key pair: %w", err)
	}

	return &tls.Config{
		RootCAs:      c.rootCA,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func (c *Manager) CommonName() string {
	return c.cert.Subject.CommonName
}
