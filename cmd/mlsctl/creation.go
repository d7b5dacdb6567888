package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/takoserver/mlsengine/mls"
)

// mintKeyPackage builds a fresh KeyPackagePrivate for identity, mirroring
// internal/engine's mintKeyPackage but inlined here since the CLI doesn't
// go through the handle-registry facade.
func mintKeyPackage(identity string) (mls.KeyPackagePrivate, error) {
	return mls.GenerateKeyPairPackage(
		mls.CipherSuiteMLS_128_DHKEMX25519_AES128GCM_SHA256_Ed25519,
		mls.NewBasicCredential([]byte(identity)),
	)
}

var createCmd = &cobra.Command{
	Use:   "create [identity]",
	Short: "Create a brand-new group and persist it in .mlsctl/",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		identity := args[0]
		paths, err := resolvePaths()
		if err != nil {
			return err
		}
		if err := paths.ensureDir(); err != nil {
			return err
		}

		kpp, err := mintKeyPackage(identity)
		if err != nil {
			return fmt.Errorf("mint key package: %w", err)
		}
		groupID, err := mls.RandomGroupID()
		if err != nil {
			return err
		}
		g, err := mls.CreateGroup(groupID, kpp)
		if err != nil {
			return fmt.Errorf("create group: %w", err)
		}
		if err := saveGroup(paths, g); err != nil {
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
		fmt.Printf("created group at epoch %d as %q\n", g.Epoch(), identity)
		fmt.Printf("group_info: %s\n", b64Encode(encoded))
		return nil
	},
}

var generateKeyPackageCmd = &cobra.Command{
	Use:   "generate-key-package [identity]",
	Short: "Mint a standalone KeyPackage for identity, to hand to a group owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kpp, err := mintKeyPackage(args[0])
		if err != nil {
			return fmt.Errorf("mint key package: %w", err)
		}
		encoded, err := mls.MarshalKeyPackage(kpp.Public)
		if err != nil {
			return err
		}
		fmt.Println(b64Encode(encoded))
		return nil
	},
}

var joinWelcomeCmd = &cobra.Command{
	Use:   "join-welcome [identity] [welcome_b64]",
	Short: "Join a group from a Welcome, landing at the post-commit epoch",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		identity, welcomeB64 := args[0], args[1]
		paths, err := resolvePaths()
		if err != nil {
			return err
		}
		if err := paths.ensureDir(); err != nil {
			return err
		}

		raw, err := b64Decode(welcomeB64)
		if err != nil {
			return err
		}
		w, err := mls.UnmarshalWelcome(raw)
		if err != nil {
			return fmt.Errorf("decode welcome: %w", err)
		}
		kpp, err := mintKeyPackage(identity)
		if err != nil {
			return fmt.Errorf("mint key package: %w", err)
		}
		g, err := mls.GroupFromWelcome(w, kpp)
		if err != nil {
			return fmt.Errorf("join with welcome: %w", err)
		}
		if err := saveGroup(paths, g); err != nil {
			return err
		}
		fmt.Printf("joined group at epoch %d as %q\n", g.Epoch(), identity)
		return nil
	},
}

var joinGroupInfoCmd = &cobra.Command{
	Use:   "join-group-info [identity] [group_info_b64]",
	Short: "Join a group via an external commit against a published GroupInfo",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		identity, giB64 := args[0], args[1]
		paths, err := resolvePaths()
		if err != nil {
			return err
		}
		if err := paths.ensureDir(); err != nil {
			return err
		}

		raw, err := b64Decode(giB64)
		if err != nil {
			return err
		}
		gi, err := mls.UnmarshalGroupInfo(raw)
		if err != nil {
			return fmt.Errorf("decode group info: %w", err)
		}
		kpp, err := mintKeyPackage(identity)
		if err != nil {
			return fmt.Errorf("mint key package: %w", err)
		}
		g, commitBytes, err := mls.GroupFromExternalCommit(gi, kpp)
		if err != nil {
			return fmt.Errorf("join with group info: %w", err)
		}
		if err := saveGroup(paths, g); err != nil {
			return err
		}
		fmt.Printf("joined group at epoch %d as %q\n", g.Epoch(), identity)
		fmt.Printf("commit (distribute to existing members): %s\n", b64Encode(commitBytes))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd, generateKeyPackageCmd, joinWelcomeCmd, joinGroupInfoCmd)
}
