package model

import "testing"

func TestComputeFindingID_Stable(t *testing.T) {
	id1 := ComputeFindingID("ta/foo.c", "TA_InvokeCommandEntryPoint", RuleUnencryptedOutput, 42)
	id2 := ComputeFindingID("ta/foo.c", "TA_InvokeCommandEntryPoint", RuleUnencryptedOutput, 43)
	if id1 != id2 {
		t.Fatalf("findings in the same line bucket should share an ID: %s != %s", id1, id2)
	}
	if len(id1) != 12 {
		t.Fatalf("expected 12-char ID, got %d chars: %s", len(id1), id1)
	}
}

func TestComputeFindingID_DiffersAcrossBuckets(t *testing.T) {
	id1 := ComputeFindingID("ta/foo.c", "fn", RuleWeakInputValidation, 10)
	id2 := ComputeFindingID("ta/foo.c", "fn", RuleWeakInputValidation, 99)
	if id1 == id2 {
		t.Fatalf("findings in different line buckets should not collide")
	}
}

func TestChain_IsSubchainOf(t *testing.T) {
	full := Chain{"a", "b", "c", "d"}
	sub := Chain{"b", "c"}
	if !sub.IsSubchainOf(full) {
		t.Fatal("expected sub to be a contiguous subsequence of full")
	}
	notContig := Chain{"a", "c"}
	if notContig.IsSubchainOf(full) {
		t.Fatal("non-contiguous sequence must not count as a subchain")
	}
	if full.IsSubchainOf(sub) {
		t.Fatal("longer chain cannot be a subchain of a shorter one")
	}
}

func TestVD_GroupKey_MergesParamIndexVariants(t *testing.T) {
	v := VD{File: "ta/foo.c", Line: 10, SinkFunction: "memcpy"}
	k1 := v.GroupKey([]int{0, 1})
	k2 := v.GroupKey([]int{1, 0})
	if k1 != k2 {
		t.Fatalf("group key must be order-independent: %s != %s", k1, k2)
	}
}
