package httpgw

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	caKeyBits    = 2048
	leafKeyBits  = 2048
	leafValidity = 365 * 24 * time.Hour
)

// CAConfig configures where the root CA keypair is persisted and how it
// is minted on first run (spec §4.7).
type CAConfig struct {
	CertFile      string
	KeyFile       string
	Organization  string
	ValidityYears int
}

// CAManager owns the proxy's root CA keypair and mints per-host leaf
// certificates signed by it.
type CAManager struct {
	mu        sync.Mutex
	caCert    *x509.Certificate
	caKey     *rsa.PrivateKey
	caCertDER []byte
	logger    *slog.Logger
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// NewCAManager loads an existing CA keypair from cfg's paths, or
// generates and persists a new one if neither file exists. It is an
// error for exactly one of the two files to exist.
func NewCAManager(cfg CAConfig, logger *slog.Logger) (*CAManager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	certExists := fileExists(cfg.CertFile)
	keyExists := fileExists(cfg.KeyFile)

	switch {
	case certExists && keyExists:
		return loadCAManager(cfg, logger)
	case !certExists && !keyExists:
		return generateCAManager(cfg, logger)
	default:
		return nil, fmt.Errorf("httpgw: inconsistent CA state: cert exists=%v, key exists=%v", certExists, keyExists)
	}
}

func generateCAManager(cfg CAConfig, logger *slog.Logger) (*CAManager, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.CertFile), 0700); err != nil {
		return nil, fmt.Errorf("create CA directory: %w", err)
	}

	lockPath := cfg.CertFile + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open CA lock file: %w", err)
	}
	defer func() { _ = lockFile.Close() }()
	if err := flockLock(lockFile.Fd()); err != nil {
		return nil, fmt.Errorf("acquire CA lock: %w", err)
	}
	defer func() { _ = flockUnlock(lockFile.Fd()) }()

	// Another process may have generated the CA while we waited for the lock.
	if fileExists(cfg.CertFile) && fileExists(cfg.KeyFile) {
		return loadCAManager(cfg, logger)
	}

	key, err := rsa.GenerateKey(rand.Reader, caKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate CA key: %w", err)
	}

	validityYears := cfg.ValidityYears
	if validityYears <= 0 {
		validityYears = 10
	}
	notBefore := time.Now().Add(-time.Hour)
	notAfter := notBefore.AddDate(validityYears, 0, 0)

	serial, err := randSerial()
	if err != nil {
		return nil, err
	}

	subjectKeyID, err := subjectKeyIdentifier(&key.PublicKey)
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{cfg.Organization},
			CommonName:   "Complyze AI Proxy CA",
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
		SubjectKeyId:          subjectKeyID,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create CA certificate: %w", err)
	}

	if err := writePEMFile(cfg.CertFile, "CERTIFICATE", certDER, 0644); err != nil {
		return nil, fmt.Errorf("write CA cert: %w", err)
	}
	keyDER := x509.MarshalPKCS1PrivateKey(key)
	if err := writePEMFile(cfg.KeyFile, "RSA PRIVATE KEY", keyDER, 0600); err != nil {
		return nil, fmt.Errorf("write CA key: %w", err)
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("parse generated CA cert: %w", err)
	}

	logger.Info("generated new CA keypair", "cert_file", cfg.CertFile, "valid_until", notAfter)

	return &CAManager{caCert: cert, caKey: key, caCertDER: certDER, logger: logger}, nil
}

func loadCAManager(cfg CAConfig, logger *slog.Logger) (*CAManager, error) {
	keyPair, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load CA keypair: %w", err)
	}
	cert, err := x509.ParseCertificate(keyPair.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("parse CA certificate: %w", err)
	}
	rsaKey, ok := keyPair.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("CA key is not RSA")
	}

	logger.Info("loaded existing CA keypair", "cert_file", cfg.CertFile)
	return &CAManager{caCert: cert, caKey: rsaKey, caCertDER: keyPair.Certificate[0], logger: logger}, nil
}

// GenerateCert mints a one-year leaf certificate for host, signed by the
// CA, with SANs {host, *.host}.
func (cm *CAManager) GenerateCert(host string) (*tls.Certificate, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	key, err := rsa.GenerateKey(rand.Reader, leafKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate leaf key: %w", err)
	}

	serial, err := randSerial()
	if err != nil {
		return nil, err
	}

	notBefore := time.Now().Add(-time.Hour)
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: host,
		},
		DNSNames:    []string{host, "*." + host},
		NotBefore:   notBefore,
		NotAfter:    notBefore.Add(leafValidity),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	leafDER, err := x509.CreateCertificate(rand.Reader, template, cm.caCert, &key.PublicKey, cm.caKey)
	if err != nil {
		return nil, fmt.Errorf("sign leaf certificate for %s: %w", host, err)
	}

	leaf, err := x509.ParseCertificate(leafDER)
	if err != nil {
		return nil, fmt.Errorf("parse leaf certificate for %s: %w", host, err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{leafDER, cm.caCertDER},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

// CACertPEM returns the CA certificate in PEM form. The start command hands
// it to the Router as Router.CACertPEM.
func (cm *CAManager) CACertPEM() []byte {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cm.caCertDER})
}

func writePEMFile(path, blockType string, der []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return pem.Encode(f, &pem.Block{Type: blockType, Bytes: der})
}

func randSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, fmt.Errorf("generate serial number: %w", err)
	}
	return serial, nil
}

func subjectKeyIdentifier(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	sum := sha1.Sum(der)
	return sum[:], nil
}
