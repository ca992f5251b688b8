package openidx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/aussiebroadwan/tavern/pkg/openidx"
	"github.com/stretchr/testify/require"
)

func sampleAssertion() openidx.Assertion {
	return openidx.Assertion{
		NS:            openidx.Namespace,
		Mode:          openidx.ModeIDRes,
		OPEndpoint:    "https://steamcommunity.com/openid/login",
		ClaimedID:     "https://steamcommunity.com/openid/id/76561197960287930",
		Identity:      "https://steamcommunity.com/openid/id/76561197960287930",
		ReturnTo:      "https://tavern.example/v1/auth/federated/callback",
		ResponseNonce: "2026-10-19T10:00:00Zabc",
		AssocHandle:   "1234567890",
		Signed:        "signed,op_endpoint,claimed_id,identity,return_to,response_nonce,assoc_handle",
		Sig:           "c2lnbmF0dXJl",
	}
}

// fakeProvider answers check_authentication with is_valid:true only for the
// signature it was built with.
func fakeProvider(t *testing.T, goodSig string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		require.Equal(t, openidx.ModeCheckAuthentication, r.PostForm.Get("openid.mode"))

		valid := r.PostForm.Get("openid.sig") == goodSig
		_, _ = w.Write([]byte("ns:" + openidx.Namespace + "\n"))
		if valid {
			_, _ = w.Write([]byte("is_valid:true\n"))
		} else {
			_, _ = w.Write([]byte("is_valid:false\n"))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFormatParseRoundTrip(t *testing.T) {
	a := sampleAssertion()

	v := a.Format()
	require.Equal(t, a.ClaimedID, v.Get("openid.claimed_id"))
	require.Equal(t, a.Sig, v.Get("openid.sig"))
	require.False(t, v.Has("openid.invalidate_handle"))

	require.Equal(t, a, openidx.ParseAssertion(v))
}

func TestIsValid(t *testing.T) {
	a := sampleAssertion()
	srv := fakeProvider(t, a.Sig)
	v := openidx.NewVerifier(srv.URL, "https://tavern.example", 0)

	ok, err := v.IsValid(context.Background(), a)
	require.NoError(t, err)
	require.True(t, ok)

	// Mode is overridden on a copy.
	require.Equal(t, openidx.ModeIDRes, a.Mode)

	tampered := a
	tampered.Sig = "dGFtcGVyZWQ="
	ok, err = v.IsValid(context.Background(), tampered)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIsValidProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "is_valid:true", http.StatusInternalServerError)
	}))
	defer srv.Close()

	v := openidx.NewVerifier(srv.URL, "", 0)
	ok, err := v.IsValid(context.Background(), sampleAssertion())
	require.NoError(t, err)
	require.False(t, ok)

	srv.Close()
	_, err = v.IsValid(context.Background(), sampleAssertion())
	require.Error(t, err)
}

func TestIsValidHonoursContext(t *testing.T) {
	srv := fakeProvider(t, "x")
	v := openidx.NewVerifier(srv.URL, "", 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := v.IsValid(ctx, sampleAssertion())
	require.ErrorIs(t, err, context.Canceled)
}

func TestIdentityFromClaim(t *testing.T) {
	id, err := openidx.IdentityFromClaim("https://steamcommunity.com/openid/id/76561197960287930")
	require.NoError(t, err)
	require.Equal(t, "76561197960287930", id)

	id, err = openidx.IdentityFromClaim("https://steamcommunity.com/openid/id/42/")
	require.NoError(t, err)
	require.Equal(t, "42", id)

	_, err = openidx.IdentityFromClaim("")
	require.ErrorIs(t, err, openidx.ErrMissingClaimedID)

	_, err = openidx.IdentityFromClaim("https://steamcommunity.com")
	require.ErrorIs(t, err, openidx.ErrInvalidClaimedID)
}

func TestAuthURL(t *testing.T) {
	v := openidx.NewVerifier("https://steamcommunity.com/openid/login", "https://tavern.example", 0)

	raw := v.AuthURL("https://tavern.example/v1/auth/federated/callback")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	require.Equal(t, "steamcommunity.com", u.Host)
	require.Equal(t, openidx.Namespace, q.Get("openid.ns"))
	require.Equal(t, openidx.ModeCheckIDSetup, q.Get("openid.mode"))
	require.Equal(t, openidx.IdentifierSelect, q.Get("openid.identity"))
	require.Equal(t, openidx.IdentifierSelect, q.Get("openid.claimed_id"))
	require.Equal(t, "https://tavern.example/v1/auth/federated/callback", q.Get("openid.return_to"))
	require.Equal(t, "https://tavern.example", q.Get("openid.realm"))
}
