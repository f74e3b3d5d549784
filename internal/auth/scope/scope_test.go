package scope

import (
	"testing"

	"github.com/zyalhor1961/corematch-web-sub006/internal/authorization"
)

func TestHasExactAndAdmin(t *testing.T) {
	scopes := []string{"document:read", "journal:admin"}

	if !Has(scopes, "document:read") {
		t.Error("exact scope should match")
	}
	if Has(scopes, "document:write") {
		t.Error("read scope must not grant write")
	}
	if !Has(scopes, "journal:write") {
		t.Error("admin scope should imply write on the same object")
	}
	if Has(scopes, "invoice:read") {
		t.Error("unrelated object must not match")
	}
	if Has(scopes, "malformed") {
		t.Error("malformed requirement must not match")
	}
}

func TestNormalizeDeduplicatesAndSorts(t *testing.T) {
	got := Normalize([]string{" Document:Read ", "document:read", "", "account:write"})
	want := []string{"account:write", "document:read"}
	if len(got) != len(want) {
		t.Fatalf("Normalize = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Normalize = %v, want %v", got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Error("empty scope list should be rejected")
	}
	if err := Validate([]string{"document:read"}); err != nil {
		t.Errorf("valid scope rejected: %v", err)
	}
	if err := Validate([]string{"document:fly"}); err == nil {
		t.Error("unknown action should be rejected")
	}
	if err := Validate([]string{"billing:read"}); err == nil {
		t.Error("unknown object should be rejected")
	}
}

func TestAllCoversGrid(t *testing.T) {
	all := All()
	if len(all) != 14*4 {
		t.Fatalf("All() returned %d scopes, want %d", len(all), 14*4)
	}
	if !Has(all, FromAuthz(authorization.ObjectDashboard, authorization.ActionRead)) {
		t.Error("All() should include dashboard:read")
	}
}
