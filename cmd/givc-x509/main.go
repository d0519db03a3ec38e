// givc-x509 prints the SAN identity entries of a certificate, the handle
// operators use to debug mTLS identity binding.
package main

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/tiiuae/ghaf-givc/internal/identity"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: givc-x509 <certificate.pem>")
		os.Exit(2)
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Fprintln(os.Stderr, "givc-x509:", err)
		os.Exit(1)
	}
}

func run(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return fmt.Errorf("no certificate PEM block in %s", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return err
	}

	info := identity.FromPeerCertificate(cert)
	fmt.Printf("subject: %s\n", cert.Subject)
	for _, name := range info.DNSNames {
		fmt.Printf("dns: %s\n", name)
	}
	for _, ip := range info.IPAddrs {
		fmt.Printf("ip: %s\n", ip)
	}
	return nil
}
