package cmd

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/complyze/ai-proxy/internal/config"
)

var trustCACertPath string

var trustCACmd = &cobra.Command{
	Use:   "trust-ca",
	Short: "Print the proxy's CA certificate and its fingerprint",
	Long: `Print the complyze-proxy interception CA certificate in PEM form along
with its SHA-256 fingerprint, so it can be imported into a browser's or
OS's trust store by hand.

complyze-proxy never modifies the system trust store itself: installing a
MITM root CA system-wide is a deliberate, auditable step left to the
operator, not something this command automates.

Examples:
  complyze-proxy trust-ca
  complyze-proxy trust-ca --cert /path/to/custom-ca.pem`,
	RunE: runTrustCA,
}

func init() {
	trustCACmd.Flags().StringVar(&trustCACertPath, "cert", "", "path to CA certificate PEM file (default: <ca dir>/ca-cert.pem)")
	rootCmd.AddCommand(trustCACmd)
}

func runTrustCA(cmd *cobra.Command, args []string) error {
	certPath, err := resolveCACertPath(trustCACertPath)
	if err != nil {
		return err
	}

	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return fmt.Errorf("failed to read certificate: %w", err)
	}

	cert, err := parsePEMCertificate(certPEM)
	if err != nil {
		return err
	}

	fingerprint := sha256Fingerprint(cert.Raw)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Certificate: %s\n", certPath)
	fmt.Fprintf(out, "Subject:     %s\n", cert.Subject.CommonName)
	fmt.Fprintf(out, "Not after:   %s\n", cert.NotAfter)
	fmt.Fprintf(out, "SHA-256:     %s\n\n", fingerprint)
	fmt.Fprint(out, string(certPEM))
	return nil
}

// resolveCACertPath returns the CA cert path, using the configured CA
// directory's default filename if not overridden.
func resolveCACertPath(override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("certificate not found: %s", override)
		}
		return override, nil
	}

	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}

	certPath := filepath.Join(cfg.CA.Dir, "ca-cert.pem")
	if _, err := os.Stat(certPath); err != nil {
		return "", fmt.Errorf("CA certificate not found at %s\nRun 'complyze-proxy start' first to generate the CA, or use --cert to specify a path", certPath)
	}
	return certPath, nil
}

// parsePEMCertificate parses a PEM-encoded certificate.
func parsePEMCertificate(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in certificate file")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}

// sha256Fingerprint returns the colon-separated uppercase hex SHA-256
// fingerprint of a DER-encoded certificate.
func sha256Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	hexStr := strings.ToUpper(hex.EncodeToString(sum[:]))
	out := make([]byte, 0, len(hexStr)+len(hexStr)/2)
	for i := 0; i < len(hexStr); i += 2 {
		if i > 0 {
			out = append(out, ':')
		}
		out = append(out, hexStr[i], hexStr[i+1])
	}
	return string(out)
}
