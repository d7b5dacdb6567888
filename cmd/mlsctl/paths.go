package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// mlsctlPaths mirrors germtb-mlsgit's storage.MLSGitPaths: every file
// mlsctl reads or writes lives under one directory, resolved once per
// invocation.
type mlsctlPaths struct {
	Dir string
}

func resolvePaths() (mlsctlPaths, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return mlsctlPaths{}, fmt.Errorf("getwd: %w", err)
	}
	return mlsctlPaths{Dir: filepath.Join(cwd, ".mlsctl")}, nil
}

func (p mlsctlPaths) ensureDir() error {
	return os.MkdirAll(p.Dir, 0o700)
}

func (p mlsctlPaths) configTOML() string  { return filepath.Join(p.Dir, "config.toml") }
func (p mlsctlPaths) groupState() string  { return filepath.Join(p.Dir, "group.state") }
func (p mlsctlPaths) identityPEM() string { return filepath.Join(p.Dir, "identity.pem") }
func (p mlsctlPaths) identityPub() string { return filepath.Join(p.Dir, "identity.pub") }
