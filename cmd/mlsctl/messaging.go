package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/takoserver/mlsengine/internal/hostapi"
	"github.com/takoserver/mlsengine/mls"
)

// mlsMessageKind peeks data's content kind without mutating g, mirroring
// internal/engine.decodeContentKind's decode-before-mutate ordering.
func mlsMessageKind(data []byte) (mls.ContentType, error) {
	msg, err := mls.UnmarshalMlsMessage(data)
	if err != nil {
		return 0, err
	}
	return msg.ContentType(), nil
}

var processCommitCmd = &cobra.Command{
	Use:   "process-commit [commit_b64]",
	Short: "Apply an inbound commit, advancing the persisted group's epoch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := resolvePaths()
		if err != nil {
			return err
		}
		g, err := loadGroup(paths)
		if err != nil {
			return err
		}
		data, err := b64Decode(args[0])
		if err != nil {
			return err
		}
		// Classify before touching g — the same ordering internal/engine's
		// ProcessCommit enforces, so a proposal handed to this command is
		// rejected before it can be appended to g's pending-proposal list.
		if kind, err := mlsMessageKind(data); err != nil {
			return fmt.Errorf("process commit: %w", err)
		} else if kind != mls.ContentCommit {
			return fmt.Errorf("process commit: message is not a commit")
		}
		pm, err := g.ProcessMessage(data)
		if err != nil {
			return fmt.Errorf("process commit: %w", err)
		}
		if err := saveGroup(paths, g); err != nil {
			return err
		}
		fmt.Printf("now at epoch %d\n", g.Epoch())
		fmt.Println(strings.Join(pm.Members, "\n"))
		return nil
	},
}

var processProposalCmd = &cobra.Command{
	Use:   "process-proposal [proposal_b64]",
	Short: "Ingest a standalone proposal with no epoch change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := resolvePaths()
		if err != nil {
			return err
		}
		g, err := loadGroup(paths)
		if err != nil {
			return err
		}
		data, err := b64Decode(args[0])
		if err != nil {
			return err
		}
		if kind, err := mlsMessageKind(data); err != nil {
			return fmt.Errorf("process proposal: %w", err)
		} else if kind != mls.ContentProposal {
			return fmt.Errorf("process proposal: message is not a proposal")
		}
		if _, err := g.ProcessMessage(data); err != nil {
			return fmt.Errorf("process proposal: %w", err)
		}
		if err := saveGroup(paths, g); err != nil {
			return err
		}
		fmt.Println("proposal recorded, no epoch change")
		return nil
	},
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt [plaintext]",
	Short: "Seal plaintext under the current epoch's application secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := resolvePaths()
		if err != nil {
			return err
		}
		g, err := loadGroup(paths)
		if err != nil {
			return err
		}
		out, err := g.CreateApplicationMessage([]byte(args[0]))
		if err != nil {
			return fmt.Errorf("encrypt: %w", err)
		}
		if err := saveGroup(paths, g); err != nil {
			return err
		}
		fmt.Println(b64Encode(out))
		return nil
	},
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt [ciphertext_b64]",
	Short: "Decode and open an inbound application message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := resolvePaths()
		if err != nil {
			return err
		}
		g, err := loadGroup(paths)
		if err != nil {
			return err
		}
		data, err := b64Decode(args[0])
		if err != nil {
			return err
		}
		if kind, err := mlsMessageKind(data); err != nil {
			return fmt.Errorf("decrypt: %w", err)
		} else if kind != mls.ContentApplication {
			return fmt.Errorf("decrypt: message is not an application message")
		}
		pm, err := g.ProcessMessage(data)
		if err != nil {
			return fmt.Errorf("decrypt: %w", err)
		}
		if err := saveGroup(paths, g); err != nil {
			return err
		}
		fmt.Println(string(pm.Plaintext))
		return nil
	},
}

var peekCmd = &cobra.Command{
	Use:   "peek [blob_b64]",
	Short: "Classify an opaque blob's wire format without consuming it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := b64Decode(args[0])
		if err != nil {
			return err
		}
		// peek_wire needs no group handle, so this is the one command that
		// can drive internal/hostapi directly instead of *mls.Group — see
		// DESIGN.md's "Known gap" note on why the stateful commands can't.
		fmt.Println(hostapi.New().PeekWire(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCommitCmd, processProposalCmd, encryptCmd, decryptCmd, peekCmd)
}
