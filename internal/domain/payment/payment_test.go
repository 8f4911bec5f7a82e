package payment

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewRegistryLookup(t *testing.T) {
	r, err := NewRegistry([]Profile{
		{Name: "Koala", AccountNumber: "09170000001", DisplayName: "K. Martinez"},
		{Name: "Csy", AccountNumber: "09170000002", DisplayName: "C. Santos", QRImageRef: "https://cdn.example/qr/csy.png"},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	p := r.Lookup("Koala")
	if p == nil || p.AccountNumber != "09170000001" {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if r.Lookup("koala") != nil {
		t.Fatal("lookup must be case-sensitive")
	}
	if r.Lookup("Dio") != nil {
		t.Fatal("expected nil for unknown name")
	}
}

func TestNewRegistryRejectsUnsafeNames(t *testing.T) {
	if _, err := NewRegistry([]Profile{{Name: "Ko:ala", AccountNumber: "1"}}); err == nil {
		t.Fatal("expected separator in name to be rejected")
	}
	if _, err := NewRegistry([]Profile{
		{Name: "Koala", AccountNumber: "1"},
		{Name: "Koala", AccountNumber: "2"},
	}); err == nil {
		t.Fatal("expected duplicate name to be rejected")
	}
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	data := `profiles:
  - name: Saz
    account_number: "09998887777"
    display_name: S. Reyes
    qr_image_ref: https://cdn.example/qr/saz.png
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	r, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	p := r.Lookup("Saz")
	if p == nil || p.QRImageRef == "" {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if got := r.Names(); len(got) != 1 || got[0] != "Saz" {
		t.Fatalf("unexpected names: %v", got)
	}
}
