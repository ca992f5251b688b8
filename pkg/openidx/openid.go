// Package openidx implements the relying-party half of an OpenID 2.0
// handshake against a provider such as Steam: building the initiating
// redirect, reading the signed assertion off the callback and asking the
// provider to vouch for it with check_authentication.
package openidx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

const (
	// Namespace is the OpenID 2.0 protocol namespace.
	Namespace = "http://specs.openid.net/auth/2.0"

	// IdentifierSelect asks the provider to pick the identifier.
	IdentifierSelect = "http://specs.openid.net/auth/2.0/identifier_select"

	ModeCheckIDSetup        = "checkid_setup"
	ModeIDRes               = "id_res"
	ModeCheckAuthentication = "check_authentication"
)

const (
	validMarker            = "is_valid:true"
	maxVerifyResponseBytes = 64 << 10
	defaultVerifyTimeout   = 10 * time.Second
)

var (
	ErrMissingClaimedID = errors.New("openidx: missing claimed id")
	ErrInvalidClaimedID = errors.New("openidx: claimed id has no identifier")
)

// Assertion is the positive assertion a provider returns on the callback.
type Assertion struct {
	NS               string
	Mode             string
	OPEndpoint       string
	ClaimedID        string
	Identity         string
	ReturnTo         string
	ResponseNonce    string
	InvalidateHandle string
	AssocHandle      string
	Signed           string
	Sig              string
}

// ParseAssertion reads an assertion from callback query parameters.
func ParseAssertion(v url.Values) Assertion {
	return Assertion{
		NS:               v.Get("openid.ns"),
		Mode:             v.Get("openid.mode"),
		OPEndpoint:       v.Get("openid.op_endpoint"),
		ClaimedID:        v.Get("openid.claimed_id"),
		Identity:         v.Get("openid.identity"),
		ReturnTo:         v.Get("openid.return_to"),
		ResponseNonce:    v.Get("openid.response_nonce"),
		InvalidateHandle: v.Get("openid.invalidate_handle"),
		AssocHandle:      v.Get("openid.assoc_handle"),
		Signed:           v.Get("openid.signed"),
		Sig:              v.Get("openid.sig"),
	}
}

// Format renders the assertion with its wire parameter names. Empty fields
// are omitted.
func (a Assertion) Format() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("openid.ns", a.NS)
	set("openid.mode", a.Mode)
	set("openid.op_endpoint", a.OPEndpoint)
	set("openid.claimed_id", a.ClaimedID)
	set("openid.identity", a.Identity)
	set("openid.return_to", a.ReturnTo)
	set("openid.response_nonce", a.ResponseNonce)
	set("openid.invalidate_handle", a.InvalidateHandle)
	set("openid.assoc_handle", a.AssocHandle)
	set("openid.signed", a.Signed)
	set("openid.sig", a.Sig)
	return v
}

// IdentityFromClaim returns the trailing path segment of a claimed id, which
// for Steam is the 64-bit account id.
func IdentityFromClaim(claimedID string) (string, error) {
	claimedID = strings.TrimSpace(claimedID)
	if claimedID == "" {
		return "", ErrMissingClaimedID
	}

	u, err := url.Parse(claimedID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidClaimedID, err)
	}

	id := path.Base(strings.TrimRight(u.Path, "/"))
	if id == "" || id == "." || id == "/" {
		return "", ErrInvalidClaimedID
	}
	return id, nil
}

// Verifier talks to a single provider endpoint.
type Verifier struct {
	Endpoint string
	Realm    string
	Client   *http.Client
}

func NewVerifier(endpoint, realm string, timeout time.Duration) *Verifier {
	if timeout <= 0 {
		timeout = defaultVerifyTimeout
	}
	return &Verifier{
		Endpoint: endpoint,
		Realm:    realm,
		Client:   &http.Client{Timeout: timeout},
	}
}

// AuthURL builds the redirect that starts a login at the provider.
func (v *Verifier) AuthURL(returnTo string) string {
	q := url.Values{}
	q.Set("openid.ns", Namespace)
	q.Set("openid.mode", ModeCheckIDSetup)
	q.Set("openid.identity", IdentifierSelect)
	q.Set("openid.claimed_id", IdentifierSelect)
	q.Set("openid.return_to", returnTo)
	q.Set("openid.realm", v.Realm)

	sep := "?"
	if strings.Contains(v.Endpoint, "?") {
		sep = "&"
	}
	return v.Endpoint + sep + q.Encode()
}

// IsValid re-posts the assertion to the provider with mode check_authentication
// and reports whether the provider confirmed it. A transport failure is an
// error; a provider that simply declines is (false, nil).
func (v *Verifier) IsValid(ctx context.Context, a Assertion) (bool, error) {
	check := a
	check.Mode = ModeCheckAuthentication

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.Endpoint,
		strings.NewReader(check.Format().Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := v.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("openid check_authentication: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxVerifyResponseBytes))
	if err != nil {
		return false, fmt.Errorf("openid check_authentication: read body: %w", err)
	}
	return strings.Contains(string(body), validMarker), nil
}
