package hostapi

import (
	"testing"

	"github.com/takoserver/mlsengine/internal/mlserr"
	"github.com/takoserver/mlsengine/internal/testrand"
)

// membersEqual reports whether got and want contain the same identities,
// regardless of order.
func membersEqual(got []string, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	seen := map[string]bool{}
	for _, m := range got {
		seen[m] = true
	}
	for _, w := range want {
		if !seen[w] {
			return false
		}
	}
	return true
}

// TestTwoPartyWelcome covers S1: alice creates, bob joins via welcome,
// alice sends an application message that bob decrypts.
func TestTwoPartyWelcome(t *testing.T) {
	restore := testrand.OverrideCryptoRand(testrand.DeterministicRNGWithSeed(1))
	defer restore()

	h := New()

	created, err := h.CreateGroup("alice")
	if err != nil {
		t.Fatalf("create_group: %v", err)
	}

	bobKP, err := h.GenerateKeyPackage("bob")
	if err != nil {
		t.Fatalf("generate_key_package: %v", err)
	}

	added, err := h.AddMembers(created.Handle, []string{bobKP.KeyPackage})
	if err != nil {
		t.Fatalf("add_members: %v", err)
	}

	joined, err := h.JoinWithWelcome("bob", added.Welcome)
	if err != nil {
		t.Fatalf("join_with_welcome: %v", err)
	}

	ct, err := h.Encrypt(created.Handle, []byte("hi"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	pt, err := h.Decrypt(joined.Handle, ct)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(pt) != "hi" {
		t.Fatalf("decrypt: got %q, want %q", pt, "hi")
	}

	aliceMembers, err := h.GetGroupMembers(created.Handle)
	if err != nil {
		t.Fatalf("get_group_members (alice): %v", err)
	}
	if !membersEqual(aliceMembers, "alice", "bob") {
		t.Fatalf("alice's members = %v, want {alice, bob}", aliceMembers)
	}
	bobMembers, err := h.GetGroupMembers(joined.Handle)
	if err != nil {
		t.Fatalf("get_group_members (bob): %v", err)
	}
	if !membersEqual(bobMembers, "alice", "bob") {
		t.Fatalf("bob's members = %v, want {alice, bob}", bobMembers)
	}
}

// TestAddThenRemove covers S2: a third party joins, the second party is
// then removed, and the removed member's next encrypt/decrypt round-trip fails as a stale
// epoch ProtocolError.
func TestAddThenRemove(t *testing.T) {
	restore := testrand.OverrideCryptoRand(testrand.DeterministicRNGWithSeed(2))
	defer restore()

	h := New()

	created, err := h.CreateGroup("alice")
	if err != nil {
		t.Fatalf("create_group: %v", err)
	}
	bobKP, err := h.GenerateKeyPackage("bob")
	if err != nil {
		t.Fatalf("generate_key_package(bob): %v", err)
	}
	added, err := h.AddMembers(created.Handle, []string{bobKP.KeyPackage})
	if err != nil {
		t.Fatalf("add_members(bob): %v", err)
	}
	bob, err := h.JoinWithWelcome("bob", added.Welcome)
	if err != nil {
		t.Fatalf("join_with_welcome(bob): %v", err)
	}

	carolKP, err := h.GenerateKeyPackage("carol")
	if err != nil {
		t.Fatalf("generate_key_package(carol): %v", err)
	}
	added2, err := h.AddMembers(created.Handle, []string{carolKP.KeyPackage})
	if err != nil {
		t.Fatalf("add_members(carol): %v", err)
	}
	if _, err := h.ProcessCommit(bob.Handle, mustDecodeRaw(t, added2.Commit)); err != nil {
		t.Fatalf("bob process_commit(add carol): %v", err)
	}
	carol, err := h.JoinWithWelcome("carol", added2.Welcome)
	if err != nil {
		t.Fatalf("join_with_welcome(carol): %v", err)
	}

	bobLeaf, err := leafIndexOf(h, created.Handle, "bob")
	if err != nil {
		t.Fatalf("find bob's leaf: %v", err)
	}
	removeCommit, err := h.RemoveMembers(created.Handle, []uint32{bobLeaf})
	if err != nil {
		t.Fatalf("remove_members: %v", err)
	}
	if _, err := h.ProcessCommit(carol.Handle, mustDecodeRaw(t, removeCommit)); err != nil {
		t.Fatalf("carol process_commit(remove bob): %v", err)
	}

	ct, err := h.Encrypt(bob.Handle, []byte("stale"))
	if err != nil {
		t.Fatalf("bob encrypt (stale epoch): %v", err)
	}
	_, err = h.Decrypt(created.Handle, ct)
	if err == nil {
		t.Fatal("alice decrypt of bob's stale-epoch message succeeded, want ProtocolError")
	}
	if !mlserr.Is(err, mlserr.ProtocolError) {
		t.Fatalf("decrypt error = %v, want ProtocolError", err)
	}
}

// TestSelfUpdate covers S3: carol rotates her own key, the remaining
// members process the commit, and encryption survives the epoch boundary.
func TestSelfUpdate(t *testing.T) {
	restore := testrand.OverrideCryptoRand(testrand.DeterministicRNGWithSeed(3))
	defer restore()

	h := New()
	created, err := h.CreateGroup("alice")
	if err != nil {
		t.Fatalf("create_group: %v", err)
	}
	carolKP, err := h.GenerateKeyPackage("carol")
	if err != nil {
		t.Fatalf("generate_key_package(carol): %v", err)
	}
	added, err := h.AddMembers(created.Handle, []string{carolKP.KeyPackage})
	if err != nil {
		t.Fatalf("add_members(carol): %v", err)
	}
	carol, err := h.JoinWithWelcome("carol", added.Welcome)
	if err != nil {
		t.Fatalf("join_with_welcome(carol): %v", err)
	}

	update, err := h.UpdateKey(carol.Handle)
	if err != nil {
		t.Fatalf("update_key: %v", err)
	}
	if _, err := h.ProcessCommit(created.Handle, mustDecodeRaw(t, update.Commit)); err != nil {
		t.Fatalf("alice process_commit(update): %v", err)
	}

	ct, err := h.Encrypt(created.Handle, []byte("post-update"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	pt, err := h.Decrypt(carol.Handle, ct)
	if err != nil {
		t.Fatalf("decrypt across update boundary: %v", err)
	}
	if string(pt) != "post-update" {
		t.Fatalf("decrypt = %q, want %q", pt, "post-update")
	}
}

// TestExternalJoin covers S4: dave joins via an external commit against
// alice's published GroupInfo.
func TestExternalJoin(t *testing.T) {
	restore := testrand.OverrideCryptoRand(testrand.DeterministicRNGWithSeed(4))
	defer restore()

	h := New()
	created, err := h.CreateGroup("alice")
	if err != nil {
		t.Fatalf("create_group: %v", err)
	}

	joined, err := h.JoinWithGroupInfo("dave", created.GroupInfo)
	if err != nil {
		t.Fatalf("join_with_group_info: %v", err)
	}
	if _, err := h.ProcessCommit(created.Handle, mustDecodeRaw(t, joined.Commit)); err != nil {
		t.Fatalf("alice process_commit(external join): %v", err)
	}

	members, err := h.GetGroupMembers(created.Handle)
	if err != nil {
		t.Fatalf("get_group_members: %v", err)
	}
	if !membersEqual(members, "alice", "dave") {
		t.Fatalf("members = %v, want {alice, dave}", members)
	}
}

// TestWirePeek covers S5: peek_wire tags each blob kind correctly.
func TestWirePeek(t *testing.T) {
	restore := testrand.OverrideCryptoRand(testrand.DeterministicRNGWithSeed(5))
	defer restore()

	h := New()
	kpResult, err := h.GenerateKeyPackage("eve")
	if err != nil {
		t.Fatalf("generate_key_package: %v", err)
	}
	created, err := h.CreateGroup("alice")
	if err != nil {
		t.Fatalf("create_group: %v", err)
	}
	added, err := h.AddMembers(created.Handle, []string{kpResult.KeyPackage})
	if err != nil {
		t.Fatalf("add_members: %v", err)
	}
	ct, err := h.Encrypt(created.Handle, []byte("peekable"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	cases := []struct {
		name string
		blob []byte
		want string
	}{
		{"key_package", mustDecodeRaw(t, kpResult.KeyPackage), "KeyPackage"},
		{"welcome", mustDecodeRaw(t, added.Welcome), "Welcome"},
		{"group_info", mustDecodeRaw(t, created.GroupInfo), "GroupInfo"},
		{"private_message", mustDecodeRaw(t, ct), "PrivateMessage"},
		{"random_bytes", testrand.RandomBytes(testrand.DeterministicRNGWithSeed(99), 32), "Unknown"},
	}
	for _, c := range cases {
		got := h.PeekWire(c.blob)
		if got != c.want {
			t.Errorf("peek_wire(%s) = %q, want %q", c.name, got, c.want)
		}
	}
}

// TestVerifyMismatch covers S6: verifying a KeyPackage against a
// mismatched identity fails.
func TestVerifyMismatch(t *testing.T) {
	restore := testrand.OverrideCryptoRand(testrand.DeterministicRNGWithSeed(6))
	defer restore()

	h := New()
	kpResult, err := h.GenerateKeyPackage("alice")
	if err != nil {
		t.Fatalf("generate_key_package: %v", err)
	}
	raw := mustDecodeRaw(t, kpResult.KeyPackage)

	bob := "bob"
	ok, err := h.VerifyKeyPackage(raw, &bob)
	if err != nil {
		t.Fatalf("verify_key_package: %v", err)
	}
	if ok {
		t.Fatal("verify_key_package(kp_for_alice, Some(bob)) = true, want false")
	}
}

func mustDecodeRaw(t *testing.T, b64 string) []byte {
	t.Helper()
	raw, err := decodeB64("test", b64)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	return raw
}

// leafIndexOf finds identity's leaf index in handle's member list by
// matching GetGroupMembers' order against the engine's own index
// assignment (members are listed in leaf order).
func leafIndexOf(h *Host, handle uint32, identity string) (uint32, error) {
	members, err := h.GetGroupMembers(handle)
	if err != nil {
		return 0, err
	}
	for i, m := range members {
		if m == identity {
			return uint32(i), nil
		}
	}
	return 0, mlserr.New(mlserr.UnknownLeaf, "test", nil)
}
