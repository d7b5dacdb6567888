package main

import (
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mlsctl",
	Short: "Manual exercise harness for the mlsengine group-session protocol",
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print this directory's persisted CLI identity fingerprint",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := resolvePaths()
		if err != nil {
			return err
		}
		if err := paths.ensureDir(); err != nil {
			return fmt.Errorf("create .mlsctl dir: %w", err)
		}
		id, err := ensureIdentity(paths)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(paths)
		if err != nil {
			return err
		}
		if err := saveConfig(paths, cfg); err != nil {
			return err
		}
		fmt.Printf("identity fingerprint: %s\n", id.fingerprint())
		fmt.Printf("config version: %s, ciphersuite: 0x%04x\n", cfg.Version, cfg.Ciphersuite)
		return nil
	},
}

func b64Encode(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func b64Decode(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return b, nil
}
