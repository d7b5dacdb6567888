package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/takoserver/mlsengine/mls"
)

var addMembersCmd = &cobra.Command{
	Use:   "add-members [kp_b64]...",
	Short: "Add one or more KeyPackages to the persisted group, eagerly merging the commit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := resolvePaths()
		if err != nil {
			return err
		}
		g, err := loadGroup(paths)
		if err != nil {
			return err
		}

		recipients := make([]mls.KeyPackage, len(args))
		for i, s := range args {
			raw, err := b64Decode(s)
			if err != nil {
				return err
			}
			kp, err := mls.UnmarshalKeyPackage(raw)
			if err != nil {
				return fmt.Errorf("decode key package %d: %w", i, err)
			}
			recipients[i] = kp
		}

		welcome, commitBytes, err := g.CreateWelcome(recipients)
		if err != nil {
			return fmt.Errorf("add members: %w", err)
		}
		if _, err := g.UnmarshalAndProcessMessage(commitBytes); err != nil {
			return fmt.Errorf("merge own commit: %w", err)
		}
		if err := saveGroup(paths, g); err != nil {
			return err
		}

		welcomeBytes, err := mls.MarshalWelcome(welcome)
		if err != nil {
			return err
		}
		fmt.Printf("added %d member(s), now at epoch %d\n", len(recipients), g.Epoch())
		fmt.Printf("commit: %s\n", b64Encode(commitBytes))
		fmt.Printf("welcome: %s\n", b64Encode(welcomeBytes))
		return nil
	},
}

var removeMembersCmd = &cobra.Command{
	Use:   "remove-members [leaf_index]...",
	Short: "Remove one or more leaf indices, eagerly merging the commit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := resolvePaths()
		if err != nil {
			return err
		}
		g, err := loadGroup(paths)
		if err != nil {
			return err
		}

		leaves := make([]uint32, len(args))
		for i, s := range args {
			n, err := strconv.ParseUint(s, 10, 32)
			if err != nil {
				return fmt.Errorf("parse leaf index %q: %w", s, err)
			}
			leaves[i] = uint32(n)
		}

		commitBytes, err := g.RemoveMembers(leaves)
		if err != nil {
			return fmt.Errorf("remove members: %w", err)
		}
		if _, err := g.UnmarshalAndProcessMessage(commitBytes); err != nil {
			return fmt.Errorf("merge own commit: %w", err)
		}
		if err := saveGroup(paths, g); err != nil {
			return err
		}
		fmt.Printf("removed %d leaf/leaves, now at epoch %d\n", len(leaves), g.Epoch())
		fmt.Printf("commit: %s\n", b64Encode(commitBytes))
		return nil
	},
}

var updateKeyCmd = &cobra.Command{
	Use:   "update-key",
	Short: "Rotate this member's own leaf key material, eagerly merging the commit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := resolvePaths()
		if err != nil {
			return err
		}
		g, err := loadGroup(paths)
		if err != nil {
			return err
		}

		commitBytes, kpp, err := g.UpdateKey()
		if err != nil {
			return fmt.Errorf("update key: %w", err)
		}
		if _, err := g.UnmarshalAndProcessMessage(commitBytes); err != nil {
			return fmt.Errorf("merge own commit: %w", err)
		}
		g.AdoptSelfUpdateKeys(kpp.SignaturePriv)
		if err := saveGroup(paths, g); err != nil {
			return err
		}

		encodedKP, err := mls.MarshalKeyPackage(kpp.Public)
		if err != nil {
			return err
		}
		fmt.Printf("rotated own key, now at epoch %d\n", g.Epoch())
		fmt.Printf("commit: %s\n", b64Encode(commitBytes))
		fmt.Printf("key_package: %s\n", b64Encode(encodedKP))
		return nil
	},
}

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "List the current group's member identities in leaf order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := resolvePaths()
		if err != nil {
			return err
		}
		g, err := loadGroup(paths)
		if err != nil {
			return err
		}
		fmt.Println(strings.Join(g.Members(), "\n"))
		return nil
	},
}

var exportGroupInfoCmd = &cobra.Command{
	Use:   "export-group-info",
	Short: "Export a signed GroupInfo snapshot for out-of-band publication",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := resolvePaths()
		if err != nil {
			return err
		}
		g, err := loadGroup(paths)
		if err != nil {
			return err
		}
		gi, err := g.ExportGroupInfo()
		if err != nil {
			return fmt.Errorf("export group info: %w", err)
		}
		encoded, err := mls.MarshalGroupInfo(gi)
		if err != nil {
			return err
		}
		fmt.Println(b64Encode(encoded))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addMembersCmd, removeMembersCmd, updateKeyCmd, membersCmd, exportGroupInfoCmd)
}
