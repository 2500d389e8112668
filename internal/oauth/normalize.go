// normalize.go -- Mapping provider profile JSON onto UserInfo.
//
// Each provider returns a differently shaped profile. A Normalizer picks the
// canonical fields out of it; FieldMap does that from an ordered list of
// gjson paths per field, so most providers are pure data.
package oauth

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// UserInfo is the provider-independent identity produced by a successful login.
// Missing fields are empty strings.
type UserInfo struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	AvatarURL  string `json:"avatar_url"`
	Provider   string `json:"provider"`

	// AdditionalClaims holds every top-level field of the raw profile, stringified.
	AdditionalClaims map[string]string `json:"additional_claims"`
}

// Normalizer extracts canonical fields from a raw profile object.
// Provider and AdditionalClaims are filled in by Normalizers.Normalize.
type Normalizer interface {
	Normalize(raw gjson.Result) UserInfo
}

// NormalizerFunc adapts a plain function to Normalizer.
type NormalizerFunc func(raw gjson.Result) UserInfo

// Normalize calls f(raw).
func (f NormalizerFunc) Normalize(raw gjson.Result) UserInfo { return f(raw) }

// FieldMap lists candidate gjson paths per canonical field, tried in order.
// A candidate counts only if it is present, non-null, and scalar.
type FieldMap struct {
	ID         []string `yaml:"id"`
	Email      []string `yaml:"email"`
	Name       []string `yaml:"name"`
	GivenName  []string `yaml:"given_name"`
	FamilyName []string `yaml:"family_name"`
	AvatarURL  []string `yaml:"avatar_url"`
}

// Normalize implements Normalizer.
func (m FieldMap) Normalize(raw gjson.Result) UserInfo {
	return UserInfo{
		ID:         firstScalar(raw, m.ID),
		Email:      firstScalar(raw, m.Email),
		Name:       firstScalar(raw, m.Name),
		GivenName:  firstScalar(raw, m.GivenName),
		FamilyName: firstScalar(raw, m.FamilyName),
		AvatarURL:  firstScalar(raw, m.AvatarURL),
	}
}

// firstScalar returns the first candidate path that holds a string, number, or bool.
// Numbers keep their literal digits, so large numeric ids are not rounded.
func firstScalar(raw gjson.Result, paths []string) string {
	for _, path := range paths {
		v := raw.Get(path)
		switch v.Type {
		case gjson.String:
			return v.Str
		case gjson.Number:
			return v.Raw
		case gjson.True, gjson.False:
			return v.String()
		}
	}
	return ""
}

// DefaultFieldMap is used for providers without a registered Normalizer.
var DefaultFieldMap = FieldMap{
	ID:    []string{"sub", "id"},
	Email: []string{"email"},
	Name:  []string{"name"},
}

var builtinFieldMaps = map[string]FieldMap{
	"google": {
		ID:         []string{"sub", "id"},
		Email:      []string{"email"},
		Name:       []string{"name"},
		GivenName:  []string{"given_name"},
		FamilyName: []string{"family_name"},
		AvatarURL:  []string{"picture"},
	},
	"microsoft": {
		ID:         []string{"id"},
		Email:      []string{"mail", "userPrincipalName"},
		Name:       []string{"displayName"},
		GivenName:  []string{"givenName"},
		FamilyName: []string{"surname"},
	},
	"github": {
		ID:        []string{"id"},
		Email:     []string{"email"},
		Name:      []string{"name", "login"},
		AvatarURL: []string{"avatar_url"},
	},
	"facebook": {
		ID:         []string{"id"},
		Email:      []string{"email"},
		Name:       []string{"name"},
		GivenName:  []string{"first_name"},
		FamilyName: []string{"last_name"},
		AvatarURL:  []string{"picture.data.url"},
	},
	// Twitter v2 wraps the user in a "data" envelope; flat shapes are accepted too.
	// Twitter never returns an email.
	"twitter": {
		ID:        []string{"id", "data.id"},
		Name:      []string{"name", "username", "data.name", "data.username"},
		AvatarURL: []string{"profile_image_url", "data.profile_image_url"},
	},
}

// Normalizers is the per-provider Normalizer registry.
// Populate it at startup; it is read-only afterwards.
type Normalizers struct {
	byProvider map[string]Normalizer
	fallback   Normalizer
}

// NewNormalizers returns a registry holding the built-in mappings
// and DefaultFieldMap as fallback.
func NewNormalizers() *Normalizers {
	n := &Normalizers{byProvider: make(map[string]Normalizer), fallback: DefaultFieldMap}
	for key, m := range builtinFieldMaps {
		n.byProvider[key] = m
	}
	return n
}

// Register sets the Normalizer for provider, replacing any existing one.
func (n *Normalizers) Register(provider string, norm Normalizer) {
	n.byProvider[normalizeKey(provider)] = norm
}

// For returns the Normalizer used for provider.
func (n *Normalizers) For(provider string) Normalizer {
	if norm, ok := n.byProvider[normalizeKey(provider)]; ok {
		return norm
	}
	return n.fallback
}

// Normalize parses body, which must be a JSON object, and maps it for provider.
// Every top-level field is copied into AdditionalClaims: strings verbatim,
// numbers as literal digits, objects and arrays as raw JSON, null as "".
func (n *Normalizers) Normalize(provider string, body []byte) (*UserInfo, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("profile is not valid json")
	}
	raw := gjson.ParseBytes(body)
	if !raw.IsObject() {
		return nil, fmt.Errorf("profile is not a json object")
	}

	info := n.For(provider).Normalize(raw)
	info.Provider = normalizeKey(provider)
	info.AdditionalClaims = make(map[string]string)
	raw.ForEach(func(key, value gjson.Result) bool {
		info.AdditionalClaims[key.String()] = value.String()
		return true
	})
	return &info, nil
}
