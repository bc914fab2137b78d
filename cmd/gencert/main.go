package main

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"git.sr.ht/~adnano/go-gemini/certificate"
	"github.com/spf13/pflag"
)

// gencert generates a self-signed TLS certificate for a Gemini capsule.
// Gemini clients pin certificates on first use, so a long-lived
// self-signed certificate is the norm.
//
// Usage:
//
//	go run ./cmd/gencert --host gemini.example.com
//	go run ./cmd/gencert --host gemini.example.com --save --out certs
//
// With --save the pair is written as <host>.crt and <host>.key, the layout
// the server reads from CERT_DIR.
func main() {
	host := pflag.String("host", "localhost", "capsule hostname")
	duration := pflag.Duration("duration", 5*365*24*time.Hour, "certificate validity")
	save := pflag.Bool("save", false, "write the certificate and key to --out")
	out := pflag.String("out", "certs", "output directory for --save")
	pflag.Parse()

	fmt.Printf("Generating self-signed certificate for %s...\n", *host)

	cert, err := certificate.Create(certificate.CreateOptions{
		DNSNames: []string{*host},
		Subject:  pkix.Name{CommonName: *host},
		Duration: *duration,
	})
	if err != nil {
		log.Fatalf("Failed to create certificate: %v", err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(cert.PrivateKey)
	if err != nil {
		log.Fatalf("Failed to marshal private key: %v", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Certificate[0]})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})

	if !*save {
		fmt.Println()
		fmt.Print(string(certPEM))
		fmt.Print(string(keyPEM))
		fmt.Println("\nKeep the private key secret. Rerun with --save to write the files.")
		return
	}

	if err := os.MkdirAll(*out, 0o700); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	certPath := filepath.Join(*out, *host+".crt")
	keyPath := filepath.Join(*out, *host+".key")
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		log.Fatalf("Failed to write certificate: %v", err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		log.Fatalf("Failed to write key: %v", err)
	}

	fmt.Printf("Certificate saved to %s\n", certPath)
	fmt.Printf("Private key saved to %s\n", keyPath)
	fmt.Println("Set CERT_FILE and KEY_FILE, or point CERT_DIR at the directory.")
}
