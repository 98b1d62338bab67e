package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/louisbranch/chronicle/internal/platform/errors"
	"github.com/louisbranch/chronicle/internal/services/story/domain/decision"
	"github.com/louisbranch/chronicle/internal/services/story/domain/impact"
)

func testFactory() decision.Factory {
	n := 0
	return decision.NewFactory(
		func() time.Time { return time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) },
		func() (string, error) {
			n++
			return fmt.Sprintf("id-%d", n), nil
		},
	)
}

func TestDefaultCatalogBuilds(t *testing.T) {
	catalog, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	keys := catalog.Keys()
	if len(keys) != 3 {
		t.Fatalf("keys = %v", keys)
	}
	for _, key := range keys {
		d, err := catalog.Build(testFactory(), key)
		if err != nil {
			t.Fatalf("Build(%s): %v", key, err)
		}
		if d.Generated || len(d.Options) == 0 || d.Prompt == "" {
			t.Fatalf("Build(%s) = %#v", key, d)
		}
	}
}

func TestBuildCarriesImpacts(t *testing.T) {
	catalog, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	d, err := catalog.Build(testFactory(), "sheriff_bargain")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if d.Importance != decision.ImportanceSignificant {
		t.Fatalf("importance = %q", d.Importance)
	}
	if d.Location == nil || !d.Location.Named() {
		t.Fatalf("location = %#v", d.Location)
	}
	impacts := d.Options[0].Impacts
	if len(impacts) != 2 {
		t.Fatalf("impacts = %#v", impacts)
	}
	if impacts[1].Target != (impact.Relationship{Actor: "player", Recipient: "outlaw"}) {
		t.Fatalf("target = %#v", impacts[1].Target)
	}
}

func TestBuildUnknownKey(t *testing.T) {
	catalog, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	_, err = catalog.Build(testFactory(), "missing")
	if apperrors.CodeOf(err) != apperrors.CodeCatalogEntryNotFound {
		t.Fatalf("code = %q", apperrors.CodeOf(err))
	}
}

func TestParseRejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		code apperrors.Code
	}{
		{name: "no options", yaml: "decisions:\n  - key: a\n    prompt: p\n", code: apperrors.CodeCatalogInvalidEntry},
		{name: "no key", yaml: "decisions:\n  - prompt: p\n    options: [{text: x}]\n", code: apperrors.CodeCatalogInvalidEntry},
		{name: "bad importance", yaml: "decisions:\n  - key: a\n    prompt: p\n    importance: epic\n    options: [{text: x}]\n", code: apperrors.CodeCatalogInvalidEntry},
		{name: "bad impact", yaml: "decisions:\n  - key: a\n    prompt: p\n    options:\n      - text: x\n        impacts: [{type: weather, target: sky, value: 1}]\n", code: apperrors.CodeImpactInvalidType},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if apperrors.CodeOf(err) != tc.code {
				t.Fatalf("err = %v, want code %q", err, tc.code)
			}
		})
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := "decisions:\n  - key: tower_ritual\n    prompt: Replaced\n    options: [{text: Only}]\n  - key: extra\n    prompt: Extra\n    options: [{text: One}]\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	catalog, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(catalog.Keys()) != 4 {
		t.Fatalf("keys = %v", catalog.Keys())
	}
	entry, err := catalog.Entry("tower_ritual")
	if err != nil || entry.Prompt != "Replaced" {
		t.Fatalf("entry = %#v err = %v", entry, err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not exist", err)
	}
}
