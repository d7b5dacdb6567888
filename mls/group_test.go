package mls

import (
	"bytes"
	"testing"
)

func TestGroupState_MarshalRoundtrip(t *testing.T) {
	cs := CipherSuiteMLS_128_DHKEMX25519_AES128GCM_SHA256_Ed25519

	credential := NewBasicCredential([]byte("alice"))
	kpp, err := GenerateKeyPairPackage(cs, credential)
	if err != nil {
		t.Fatal(err)
	}

	group, err := CreateGroup(GroupID("test-group"), kpp)
	if err != nil {
		t.Fatal(err)
	}

	plaintext := []byte("hello world")
	ciphertext, err := group.CreateApplicationMessage(plaintext)
	if err != nil {
		t.Fatal(err)
	}

	data, err := group.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("marshaled data is empty")
	}

	restored, err := UnmarshalGroupState(data)
	if err != nil {
		t.Fatal(err)
	}

	data2, err := restored.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, data2) {
		t.Fatal("re-marshaled data does not match original")
	}

	decrypted, err := restored.UnmarshalAndProcessMessage(ciphertext)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("decrypted = %q, want %q", decrypted, plaintext)
	}
}

func TestGroupState_TwoMemberRoundtrip(t *testing.T) {
	cs := CipherSuiteMLS_128_DHKEMX25519_AES128GCM_SHA256_Ed25519

	aliceCred := NewBasicCredential([]byte("alice"))
	aliceKPP, err := GenerateKeyPairPackage(cs, aliceCred)
	if err != nil {
		t.Fatal(err)
	}
	aliceGroup, err := CreateGroup(GroupID("two-member"), aliceKPP)
	if err != nil {
		t.Fatal(err)
	}

	bobCred := NewBasicCredential([]byte("bob"))
	bobKPP, err := GenerateKeyPairPackage(cs, bobCred)
	if err != nil {
		t.Fatal(err)
	}

	welcome, commitBytes, err := aliceGroup.CreateWelcome([]KeyPackage{bobKPP.Public})
	if err != nil {
		t.Fatal(err)
	}

	// Alice merges her own commit (eager self-merge).
	if _, err := aliceGroup.UnmarshalAndProcessMessage(commitBytes); err != nil {
		t.Fatal(err)
	}

	bobGroup, err := GroupFromWelcome(welcome, bobKPP)
	if err != nil {
		t.Fatal(err)
	}

	bobData, err := bobGroup.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	restoredBob, err := UnmarshalGroupState(bobData)
	if err != nil {
		t.Fatal(err)
	}

	plaintext := []byte("hello from alice")
	ciphertext, err := aliceGroup.CreateApplicationMessage(plaintext)
	if err != nil {
		t.Fatal(err)
	}

	decrypted, err := restoredBob.UnmarshalAndProcessMessage(ciphertext)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("decrypted = %q, want %q", decrypted, plaintext)
	}

	aliceData, err := aliceGroup.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	restoredAlice, err := UnmarshalGroupState(aliceData)
	if err != nil {
		t.Fatal(err)
	}

	plaintext2 := []byte("hello from restored alice")
	ciphertext2, err := restoredAlice.CreateApplicationMessage(plaintext2)
	if err != nil {
		t.Fatal(err)
	}

	restoredBob2, err := UnmarshalGroupState(bobData)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := restoredBob2.UnmarshalAndProcessMessage(ciphertext); err != nil {
		t.Fatal(err)
	}
	decrypted2, err := restoredBob2.UnmarshalAndProcessMessage(ciphertext2)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decrypted2, plaintext2) {
		t.Fatalf("decrypted2 = %q, want %q", decrypted2, plaintext2)
	}
}

func TestGroupState_EmptyPendingProposals(t *testing.T) {
	cs := CipherSuiteMLS_128_DHKEMX25519_AES128GCM_SHA256_Ed25519

	credential := NewBasicCredential([]byte("alice"))
	kpp, err := GenerateKeyPairPackage(cs, credential)
	if err != nil {
		t.Fatal(err)
	}

	group, err := CreateGroup(GroupID("empty-proposals"), kpp)
	if err != nil {
		t.Fatal(err)
	}
	if len(group.pendingProposals) != 0 {
		t.Fatalf("expected 0 pending proposals, got %d", len(group.pendingProposals))
	}

	data, err := group.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	restored, err := UnmarshalGroupState(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(restored.pendingProposals) != 0 {
		t.Fatalf("restored group has %d pending proposals, want 0", len(restored.pendingProposals))
	}

	plaintext := []byte("still works")
	ciphertext, err := restored.CreateApplicationMessage(plaintext)
	if err != nil {
		t.Fatal(err)
	}
	decrypted, err := group.UnmarshalAndProcessMessage(ciphertext)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("decrypted = %q, want %q", decrypted, plaintext)
	}
}

func TestGroup_RemoveMember(t *testing.T) {
	cs := CipherSuiteMLS_128_DHKEMX25519_AES128GCM_SHA256_Ed25519

	aliceKPP, err := GenerateKeyPairPackage(cs, NewBasicCredential([]byte("alice")))
	if err != nil {
		t.Fatal(err)
	}
	aliceGroup, err := CreateGroup(GroupID("remove-test"), aliceKPP)
	if err != nil {
		t.Fatal(err)
	}

	bobKPP, err := GenerateKeyPairPackage(cs, NewBasicCredential([]byte("bob")))
	if err != nil {
		t.Fatal(err)
	}
	welcome, addCommit, err := aliceGroup.CreateWelcome([]KeyPackage{bobKPP.Public})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := aliceGroup.UnmarshalAndProcessMessage(addCommit); err != nil {
		t.Fatal(err)
	}
	bobGroup, err := GroupFromWelcome(welcome, bobKPP)
	if err != nil {
		t.Fatal(err)
	}

	removeCommit, err := aliceGroup.RemoveMembers([]uint32{bobGroup.LeafIndex()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := aliceGroup.UnmarshalAndProcessMessage(removeCommit); err != nil {
		t.Fatal(err)
	}

	processed, err := bobGroup.ProcessMessage(removeCommit)
	if err != nil {
		t.Fatal(err)
	}
	if len(processed.Members) != 1 {
		t.Fatalf("expected 1 member after remove, got %d", len(processed.Members))
	}

	if _, err := bobGroup.CreateApplicationMessage([]byte("hi")); err != ErrRemovedSelf {
		t.Fatalf("expected ErrRemovedSelf, got %v", err)
	}
}

func TestGroup_UpdateKey(t *testing.T) {
	cs := CipherSuiteMLS_128_DHKEMX25519_AES128GCM_SHA256_Ed25519

	aliceKPP, err := GenerateKeyPairPackage(cs, NewBasicCredential([]byte("alice")))
	if err != nil {
		t.Fatal(err)
	}
	aliceGroup, err := CreateGroup(GroupID("update-test"), aliceKPP)
	if err != nil {
		t.Fatal(err)
	}

	commitBytes, newKPP, err := aliceGroup.UpdateKey()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := aliceGroup.UnmarshalAndProcessMessage(commitBytes); err != nil {
		t.Fatal(err)
	}
	aliceGroup.AdoptSelfUpdateKeys(newKPP.SignaturePriv)

	msg, err := aliceGroup.CreateApplicationMessage([]byte("post-update"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := aliceGroup.UnmarshalAndProcessMessage(msg); err != nil {
		t.Fatal(err)
	}
}

func TestGroup_ExternalCommitJoin(t *testing.T) {
	cs := CipherSuiteMLS_128_DHKEMX25519_AES128GCM_SHA256_Ed25519

	aliceKPP, err := GenerateKeyPairPackage(cs, NewBasicCredential([]byte("alice")))
	if err != nil {
		t.Fatal(err)
	}
	aliceGroup, err := CreateGroup(GroupID("external-test"), aliceKPP)
	if err != nil {
		t.Fatal(err)
	}

	gi, err := aliceGroup.ExportGroupInfo()
	if err != nil {
		t.Fatal(err)
	}

	carolKPP, err := GenerateKeyPairPackage(cs, NewBasicCredential([]byte("carol")))
	if err != nil {
		t.Fatal(err)
	}

	carolGroup, commitBytes, err := GroupFromExternalCommit(gi, carolKPP)
	if err != nil {
		t.Fatal(err)
	}

	processed, err := aliceGroup.ProcessMessage(commitBytes)
	if err != nil {
		t.Fatal(err)
	}
	if len(processed.Members) != 2 {
		t.Fatalf("expected 2 members after external join, got %d", len(processed.Members))
	}
	if carolGroup.Epoch() != aliceGroup.Epoch() {
		t.Fatalf("epoch mismatch: carol=%d alice=%d", carolGroup.Epoch(), aliceGroup.Epoch())
	}

	msg, err := aliceGroup.CreateApplicationMessage([]byte("hi carol"))
	if err != nil {
		t.Fatal(err)
	}
	decrypted, err := carolGroup.UnmarshalAndProcessMessage(msg)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decrypted, []byte("hi carol")) {
		t.Fatalf("decrypted = %q", decrypted)
	}
}
