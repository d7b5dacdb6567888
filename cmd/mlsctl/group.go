package main

import (
	"fmt"
	"os"

	"github.com/takoserver/mlsengine/mls"
)

// loadGroup reads the persisted group state for the current directory.
// Unlike internal/engine's in-memory handle registry (scoped to one
// process, per spec.md §5's process-wide model), mlsctl is a one-shot
// process per invocation: it persists the live mls.Group to disk around
// every command, mirroring germtb-mlsgit's saveMLSState/loadMLSGitGroup
// pair in internal/cli/helpers.go.
func loadGroup(p mlsctlPaths) (*mls.Group, error) {
	data, err := os.ReadFile(p.groupState())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no group in this directory; run 'mlsctl create', 'mlsctl join-welcome' or 'mlsctl join-group-info' first")
		}
		return nil, fmt.Errorf("read group state: %w", err)
	}
	g, err := mls.UnmarshalGroupState(data)
	if err != nil {
		return nil, fmt.Errorf("decode group state: %w", err)
	}
	return g, nil
}

// saveGroup persists g's current state, overwriting any prior state in
// this directory.
func saveGroup(p mlsctlPaths, g *mls.Group) error {
	data, err := g.Marshal()
	if err != nil {
		return fmt.Errorf("encode group state: %w", err)
	}
	return os.WriteFile(p.groupState(), data, 0o600)
}
