package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestCanonicalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Final", "final"},
		{"Shared Strings", "shared-strings"},
		{"  App / Web  ", "app-web"},
		{"Crème Brûlée!!", "creme-brulee"},
		{"a--b---c", "a-b-c"},
		{"-already-slug-", "already-slug"},
	}

	for _, tc := range cases {
		got, err := CanonicalizeName(tc.in)
		if err != nil {
			t.Fatalf("CanonicalizeName(%q) returned error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("CanonicalizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalizeNameRejectsEmptyResult(t *testing.T) {
	for _, in := range []string{"", "   ", "!!!", "---"} {
		if _, err := CanonicalizeName(in); err == nil {
			t.Errorf("CanonicalizeName(%q) expected error, got nil", in)
		} else if !IsValidation(err) {
			t.Errorf("CanonicalizeName(%q) expected validation error, got %v", in, err)
		}
	}
}

func TestTranslationKeyDistinguishesNilCulture(t *testing.T) {
	base := TranslationKey{ResourceName: "App.Strings", TranslationName: "Hello"}
	empty := ""
	localized := TranslationKey{ResourceName: "App.Strings", TranslationName: "Hello", CultureName: &empty}

	if base.String() == localized.String() {
		t.Fatalf("nil culture key %q must differ from empty culture key %q", base.String(), localized.String())
	}
}

func TestSetVersionStateIsExclusive(t *testing.T) {
	var tr Translation

	tr.SetVersionState(VersionDraft)
	if tr.IsCurrentVersion || !tr.IsDraftVersion || tr.IsOldVersion {
		t.Fatalf("draft state: unexpected flags %v %v %v", tr.IsCurrentVersion, tr.IsDraftVersion, tr.IsOldVersion)
	}

	tr.SetVersionState(VersionCurrent)
	if !tr.IsCurrentVersion || tr.IsDraftVersion || tr.IsOldVersion {
		t.Fatalf("current state: unexpected flags %v %v %v", tr.IsCurrentVersion, tr.IsDraftVersion, tr.IsOldVersion)
	}

	if tr.VersionState() != VersionCurrent {
		t.Fatalf("expected current state, got %s", tr.VersionState())
	}
}

func TestSnapshotPointsAtLiveRow(t *testing.T) {
	culture := "en-US"
	live := Translation{
		ID:              uuid.New(),
		ResourceName:    "App.Strings",
		TranslationName: "Hello",
		CultureName:     &culture,
		Content:         "Hello",
	}
	live.SetVersionState(VersionCurrent)

	snap := live.Snapshot()

	if snap.ID == live.ID {
		t.Fatalf("snapshot must get a fresh id")
	}
	if snap.OriginalTranslationID == nil || *snap.OriginalTranslationID != live.ID {
		t.Fatalf("snapshot must point at the live row")
	}
	if snap.VersionState() != VersionOld {
		t.Fatalf("snapshot must be an old version, got %s", snap.VersionState())
	}
	if snap.Content != live.Content || snap.ResourceName != live.ResourceName {
		t.Fatalf("snapshot must preserve content and names")
	}
}

func TestContentEquals(t *testing.T) {
	tmpl := "tmpl"
	tr := Translation{Content: "a", ContentTemplate: &tmpl}

	if !tr.ContentEquals("a", &tmpl) {
		t.Errorf("expected equal content")
	}
	if tr.ContentEquals("b", &tmpl) {
		t.Errorf("content change not detected")
	}
	if tr.ContentEquals("a", nil) {
		t.Errorf("template clear not detected")
	}
}
