// Package keycloak adapts the Keycloak admin REST API to identity.Directory.
// Service credentials come from the OAuth2 client-credentials grant against
// the realm's token endpoint; tokens are cached and refreshed by oauth2.
package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"boxoffice/internal/identity"
	id "boxoffice/pkg/domain"
	"boxoffice/pkg/platform/sentinel"
)

// Config holds admin API coordinates.
type Config struct {
	BaseURL      string
	Realm        string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client is a Keycloak-backed directory.
type Client struct {
	baseURL string
	realm   string
	http    *http.Client
}

// New builds a client whose HTTP transport injects a service-account token.
func New(ctx context.Context, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     base + "/realms/" + url.PathEscape(cfg.Realm) + "/protocol/openid-connect/token",
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	// the token fetch uses the same bounded client as admin calls
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: timeout})
	httpClient := cc.Client(ctx)
	httpClient.Timeout = timeout

	return &Client{baseURL: base, realm: cfg.Realm, http: httpClient}
}

type userRepresentation struct {
	ID            string              `json:"id,omitempty"`
	Username      string              `json:"username,omitempty"`
	Email         string              `json:"email,omitempty"`
	FirstName     string              `json:"firstName,omitempty"`
	Enabled       *bool               `json:"enabled,omitempty"`
	EmailVerified *bool               `json:"emailVerified,omitempty"`
	Credentials   []credentialPayload `json:"credentials,omitempty"`
}

type credentialPayload struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

type roleRepresentation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func boolPtr(b bool) *bool { return &b }

func (c *Client) CreateIdentity(ctx context.Context, email, password, displayName string) (id.AccountID, error) {
	body := userRepresentation{
		Username:      email,
		Email:         email,
		FirstName:     displayName,
		Enabled:       boolPtr(true),
		EmailVerified: boolPtr(false),
		Credentials:   []credentialPayload{{Type: "password", Value: password}},
	}
	resp, err := c.do(ctx, http.MethodPost, c.adminPath("users"), nil, body)
	if err != nil {
		return id.AccountID{}, fmt.Errorf("create identity: %w", err)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusCreated:
	case http.StatusConflict:
		return id.AccountID{}, fmt.Errorf("create identity: %w", sentinel.ErrAlreadyUsed)
	default:
		return id.AccountID{}, fmt.Errorf("create identity: %w", statusError(resp))
	}

	loc := resp.Header.Get("Location")
	accountID, err := id.ParseAccountID(path.Base(loc))
	if err != nil {
		return id.AccountID{}, fmt.Errorf("create identity: unexpected location %q", loc)
	}
	return accountID, nil
}

func (c *Client) DeleteIdentity(ctx context.Context, accountID id.AccountID) error {
	resp, err := c.do(ctx, http.MethodDelete, c.adminPath("users", accountID.String()), nil, nil)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	defer drain(resp)
	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return fmt.Errorf("delete identity: %w", statusError(resp))
}

func (c *Client) AssignRole(ctx context.Context, accountID id.AccountID, role identity.Role) error {
	return c.changeRoleMapping(ctx, http.MethodPost, accountID, role)
}

func (c *Client) RevokeRole(ctx context.Context, accountID id.AccountID, role identity.Role) error {
	return c.changeRoleMapping(ctx, http.MethodDelete, accountID, role)
}

func (c *Client) changeRoleMapping(ctx context.Context, method string, accountID id.AccountID, role identity.Role) error {
	rep, err := c.realmRole(ctx, role)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, method, c.adminPath("users", accountID.String(), "role-mappings", "realm"), nil, []roleRepresentation{rep})
	if err != nil {
		return fmt.Errorf("role mapping %s: %w", role, err)
	}
	defer drain(resp)
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("role mapping %s: %w", role, sentinel.ErrNotFound)
	default:
		return fmt.Errorf("role mapping %s: %w", role, statusError(resp))
	}
}

func (c *Client) realmRole(ctx context.Context, role identity.Role) (roleRepresentation, error) {
	var rep roleRepresentation
	if err := c.getJSON(ctx, c.adminPath("roles", role.String()), nil, &rep); err != nil {
		return roleRepresentation{}, fmt.Errorf("lookup role %s: %w", role, err)
	}
	return rep, nil
}

func (c *Client) GetRoles(ctx context.Context, accountID id.AccountID) ([]identity.Role, error) {
	var reps []roleRepresentation
	if err := c.getJSON(ctx, c.adminPath("users", accountID.String(), "role-mappings", "realm", "composite"), nil, &reps); err != nil {
		return nil, fmt.Errorf("get roles: %w", err)
	}
	names := make([]string, 0, len(reps))
	for _, r := range reps {
		names = append(names, r.Name)
	}
	flat := identity.RolesFromClaims(map[string]any{"roles": names}, "")
	roles := make([]identity.Role, 0, len(flat))
	for _, name := range flat {
		roles = append(roles, identity.Role(name))
	}
	return roles, nil
}

func (c *Client) HasRole(ctx context.Context, accountID id.AccountID, role identity.Role) (bool, error) {
	roles, err := c.GetRoles(ctx, accountID)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) FindIDByEmail(ctx context.Context, email string) (id.AccountID, bool, error) {
	var users []userRepresentation
	q := url.Values{"email": {email}, "exact": {"true"}}
	if err := c.getJSON(ctx, c.adminPath("users"), q, &users); err != nil {
		return id.AccountID{}, false, fmt.Errorf("find identity by email: %w", err)
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, email) {
			accountID, err := id.ParseAccountID(u.ID)
			if err != nil {
				return id.AccountID{}, false, fmt.Errorf("find identity by email: %w", err)
			}
			return accountID, true, nil
		}
	}
	return id.AccountID{}, false, nil
}

func (c *Client) SetEnabled(ctx context.Context, accountID id.AccountID, enabled bool) error {
	resp, err := c.do(ctx, http.MethodPut, c.adminPath("users", accountID.String()), nil, userRepresentation{Enabled: boolPtr(enabled)})
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	defer drain(resp)
	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("set enabled: %w", sentinel.ErrNotFound)
	default:
		return fmt.Errorf("set enabled: %w", statusError(resp))
	}
}

func (c *Client) adminPath(parts ...string) string {
	escaped := make([]string, 0, len(parts)+3)
	escaped = append(escaped, "admin", "realms", url.PathEscape(c.realm))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}

func (c *Client) do(ctx context.Context, method, target string, query url.Values, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Join(sentinel.ErrUnavailable, err)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, target string, query url.Values, out any) error {
	resp, err := c.do(ctx, http.MethodGet, target, query, nil)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode == http.StatusNotFound {
		return sentinel.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("keycloak status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

var _ identity.Directory = (*Client)(nil)
