package oauth

import (
	"testing"

	"github.com/tidwall/gjson"
)

func mustNormalize(t *testing.T, provider, body string) *UserInfo {
	t.Helper()
	info, err := NewNormalizers().Normalize(provider, []byte(body))
	if err != nil {
		t.Fatalf("Normalize(%s): unexpected error: %v", provider, err)
	}
	return info
}

func assertField(t *testing.T, name, want, got string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %q, got %q", name, want, got)
	}
}

// --- Built-in mappings ---

func TestNormalize_Google(t *testing.T) {
	info := mustNormalize(t, "google", `{"sub":"123","email":"a@x.com","name":"A","picture":"http://p","given_name":"Ada","family_name":"Lovelace"}`)

	assertField(t, "ID", "123", info.ID)
	assertField(t, "Email", "a@x.com", info.Email)
	assertField(t, "Name", "A", info.Name)
	assertField(t, "AvatarURL", "http://p", info.AvatarURL)
	assertField(t, "GivenName", "Ada", info.GivenName)
	assertField(t, "FamilyName", "Lovelace", info.FamilyName)
	assertField(t, "Provider", "google", info.Provider)
}

func TestNormalize_GoogleFallsBackToID(t *testing.T) {
	// The v2 userinfo endpoint returns "id" rather than "sub".
	info := mustNormalize(t, "google", `{"id":"108","email":"a@x.com"}`)
	assertField(t, "ID", "108", info.ID)
}

func TestNormalize_GitHub(t *testing.T) {
	info := mustNormalize(t, "github", `{"id":42,"login":"octo","name":null,"avatar_url":"u"}`)

	assertField(t, "ID", "42", info.ID)
	assertField(t, "Name", "octo", info.Name)
	assertField(t, "AvatarURL", "u", info.AvatarURL)
	assertField(t, "Email", "", info.Email)
	assertField(t, "Provider", "github", info.Provider)
}

func TestNormalize_GitHubPrefersName(t *testing.T) {
	info := mustNormalize(t, "github", `{"id":1,"login":"octo","name":"The Octocat"}`)
	assertField(t, "Name", "The Octocat", info.Name)
}

func TestNormalize_Microsoft(t *testing.T) {
	t.Run("mail present", func(t *testing.T) {
		info := mustNormalize(t, "microsoft", `{"id":"ms-1","displayName":"Grace H","givenName":"Grace","surname":"Hopper","mail":"g@corp.com","userPrincipalName":"grace@corp.onmicrosoft.com"}`)
		assertField(t, "ID", "ms-1", info.ID)
		assertField(t, "Email", "g@corp.com", info.Email)
		assertField(t, "Name", "Grace H", info.Name)
		assertField(t, "GivenName", "Grace", info.GivenName)
		assertField(t, "FamilyName", "Hopper", info.FamilyName)
		assertField(t, "AvatarURL", "", info.AvatarURL)
	})

	t.Run("mail null falls back to userPrincipalName", func(t *testing.T) {
		info := mustNormalize(t, "microsoft", `{"id":"ms-2","mail":null,"userPrincipalName":"upn@corp.com"}`)
		assertField(t, "Email", "upn@corp.com", info.Email)
	})
}

func TestNormalize_Facebook(t *testing.T) {
	info := mustNormalize(t, "facebook", `{"id":"fb1","name":"F B","first_name":"F","last_name":"B","email":"f@b.com","picture":{"data":{"url":"https://fb/pic.jpg","is_silhouette":false}}}`)

	assertField(t, "ID", "fb1", info.ID)
	assertField(t, "AvatarURL", "https://fb/pic.jpg", info.AvatarURL)
	assertField(t, "GivenName", "F", info.GivenName)
	assertField(t, "FamilyName", "B", info.FamilyName)
}

func TestNormalize_FacebookWithoutPicture(t *testing.T) {
	info := mustNormalize(t, "facebook", `{"id":"fb1","name":"F"}`)
	assertField(t, "AvatarURL", "", info.AvatarURL)
}

func TestNormalize_Twitter(t *testing.T) {
	t.Run("flat", func(t *testing.T) {
		info := mustNormalize(t, "twitter", `{"id":"tw1","username":"jack","profile_image_url":"https://tw/p.png","email":"ignored@x.com"}`)
		assertField(t, "ID", "tw1", info.ID)
		assertField(t, "Name", "jack", info.Name)
		assertField(t, "AvatarURL", "https://tw/p.png", info.AvatarURL)
		assertField(t, "Email", "", info.Email)
	})

	t.Run("data envelope", func(t *testing.T) {
		info := mustNormalize(t, "twitter", `{"data":{"id":"tw2","name":"Jack","username":"jack"}}`)
		assertField(t, "ID", "tw2", info.ID)
		assertField(t, "Name", "Jack", info.Name)
	})
}

func TestNormalize_DefaultMapping(t *testing.T) {
	info := mustNormalize(t, "corp", `{"sub":"c-1","email":"c@corp","name":"C"}`)

	assertField(t, "ID", "c-1", info.ID)
	assertField(t, "Email", "c@corp", info.Email)
	assertField(t, "Name", "C", info.Name)
	assertField(t, "Provider", "corp", info.Provider)
}

// --- Additional claims ---

func TestNormalize_AdditionalClaims(t *testing.T) {
	info := mustNormalize(t, "github", `{"id":42,"login":"octo","name":null,"site_admin":false,"plan":{"name":"pro"},"orgs":["a","b"],"ratio":1.5}`)

	want := map[string]string{
		"id":         "42",
		"login":      "octo",
		"name":       "",
		"site_admin": "false",
		"plan":       `{"name":"pro"}`,
		"orgs":       `["a","b"]`,
		"ratio":      "1.5",
	}
	if len(info.AdditionalClaims) != len(want) {
		t.Errorf("claim count: expected %d, got %d (%v)", len(want), len(info.AdditionalClaims), info.AdditionalClaims)
	}
	for k, v := range want {
		got, ok := info.AdditionalClaims[k]
		if !ok {
			t.Errorf("claim %q: missing", k)
			continue
		}
		if got != v {
			t.Errorf("claim %q: expected %q, got %q", k, v, got)
		}
	}
}

func TestNormalize_LargeNumericIDKeepsDigits(t *testing.T) {
	info := mustNormalize(t, "github", `{"id":123456789012345678901}`)
	assertField(t, "ID", "123456789012345678901", info.ID)
	assertField(t, "claim id", "123456789012345678901", info.AdditionalClaims["id"])
}

// --- Errors ---

func TestNormalize_RejectsNonObjects(t *testing.T) {
	n := NewNormalizers()
	for _, body := range []string{``, `not json`, `[1,2]`, `"str"`, `null`} {
		if _, err := n.Normalize("google", []byte(body)); err == nil {
			t.Errorf("body %q: expected error", body)
		}
	}
}

// --- Registration ---

func TestNormalizers_Register(t *testing.T) {
	n := NewNormalizers()
	n.Register("Corp", FieldMap{ID: []string{"uid"}, Email: []string{"contact.email"}})

	info, err := n.Normalize("corp", []byte(`{"uid":"u1","contact":{"email":"e@corp"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertField(t, "ID", "u1", info.ID)
	assertField(t, "Email", "e@corp", info.Email)
}

func TestNormalizers_RegisterFunc(t *testing.T) {
	n := NewNormalizers()
	n.Register("upper", NormalizerFunc(func(raw gjson.Result) UserInfo {
		return UserInfo{ID: "fixed-" + raw.Get("k").String()}
	}))

	info, err := n.Normalize("upper", []byte(`{"k":"v"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertField(t, "ID", "fixed-v", info.ID)
	assertField(t, "Provider", "upper", info.Provider)
}
