package payment

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile holds the receiving account details of one staff member.
type Profile struct {
	Name          string `yaml:"name"`
	AccountNumber string `yaml:"account_number"`
	DisplayName   string `yaml:"display_name"`
	QRImageRef    string `yaml:"qr_image_ref,omitempty"`
}

// Registry is the immutable staff-name to payment-profile mapping,
// loaded once at startup. Lookups are exact and case-sensitive.
type Registry struct {
	profiles map[string]Profile
}

type registryFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadRegistry reads the registry from a YAML file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payment profiles: %w", err)
	}
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse payment profiles: %w", err)
	}
	return NewRegistry(f.Profiles)
}

// NewRegistry builds a registry from profiles. Profile names feed the
// action token codec as parameter values, so they must not contain the
// token separator; names are validated here once instead of on every
// encode.
func NewRegistry(profiles []Profile) (*Registry, error) {
	m := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		if p.Name == "" || p.AccountNumber == "" {
			return nil, fmt.Errorf("payment profile %q: name and account_number are required", p.Name)
		}
		if strings.ContainsAny(p.Name, ": ") {
			return nil, fmt.Errorf("payment profile %q: name must not contain separators", p.Name)
		}
		if _, ok := m[p.Name]; ok {
			return nil, fmt.Errorf("duplicate payment profile: %s", p.Name)
		}
		m[p.Name] = p
	}
	return &Registry{profiles: m}, nil
}

// Lookup returns the profile for name, or nil.
func (r *Registry) Lookup(name string) *Profile {
	if p, ok := r.profiles[name]; ok {
		return &p
	}
	return nil
}

// Names returns the configured profile names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for n := range r.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
