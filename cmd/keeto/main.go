package main

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flix-/keeto/pkg/config"
	"github.com/flix-/keeto/pkg/keystore"
	"github.com/flix-/keeto/pkg/log"
	"github.com/flix-/keeto/pkg/resolver"
	"github.com/flix-/keeto/pkg/security"
	"github.com/flix-/keeto/pkg/sshkey"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "keeto",
	Short: "Keeto - X.509 based authorized keys for OpenSSH",
	Long: `Keeto derives the authorized keys of a Unix account at login time
from an LDAP-backed inventory of X.509 certificates. Certificates are
validated against a trusted PKI and the SSH public keys extracted from
them are emitted in the form the SSH daemon consumes.`,
	Version: Version,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Keeto version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	// Global flags
	rootCmd.PersistentFlags().String("config", "/etc/keeto/keeto.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	// Initialize logging before command execution
	cobra.OnInitialize(initLogging)

	// Add subcommands
	rootCmd.AddCommand(authorizedKeysCmd)
	rootCmd.AddCommand(fingerprintCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var authorizedKeysCmd = &cobra.Command{
	Use:   "authorized-keys <uid>",
	Short: "Print the authorized keys for a login uid",
	Long: `Resolve the access profiles authorizing the given uid, validate the
provider certificates against the certificate store and print one
authorized_keys line per surviving certificate to stdout.

Intended to be wired into sshd via AuthorizedKeysCommand. On any fatal
error nothing is printed, so the login fails closed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		defer security.FreeCertStore()

		lines, err := keystore.Build(cfg, args[0])
		if err != nil {
			if errors.Is(err, resolver.ErrLdapOffline) {
				// Advisory: the directory is unreachable,
				// the login proceeds without keys.
				log.Warn("ldap server offline, no keys emitted")
				return nil
			}
			return err
		}

		for _, line := range lines {
			fmt.Println(line)
		}
		return nil
	},
}

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint <cert.pem>",
	Short: "Print the SSH key fingerprints of a certificate",
	Long: `Derive the SSH key from a PEM encoded X.509 certificate file and
print its MD5 and SHA-256 fingerprints, matching ssh-keygen -l output.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read certificate file: %w", err)
		}
		block, _ := pem.Decode(data)
		if block == nil || block.Type != "CERTIFICATE" {
			return fmt.Errorf("no certificate pem block found in %q", args[0])
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return fmt.Errorf("failed to parse certificate: %w", err)
		}

		pub, err := security.PublicKey(cert)
		if err != nil {
			return err
		}
		blob, err := sshkey.SerializeRSA("ssh-rsa", pub)
		if err != nil {
			return err
		}
		fpMD5, err := sshkey.Fingerprint(blob, sshkey.DigestMD5)
		if err != nil {
			return err
		}
		fpSHA256, err := sshkey.Fingerprint(blob, sshkey.DigestSHA256)
		if err != nil {
			return err
		}

		fmt.Printf("Serial:  %s\n", security.Serial(cert))
		fmt.Printf("Subject: %s\n", security.Subject(cert))
		fmt.Printf("MD5:     %s\n", fpMD5)
		fmt.Printf("SHA256:  %s\n", fpSHA256)
		return nil
	},
}
