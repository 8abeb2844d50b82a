// Package nxapi is the structured-query sample source. It authenticates
// against a switch's management API, pulls one managed-object class per
// metric family and parses the attribute maps into raw samples, interface
// inventory and switch facts.
package nxapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"codeberg.org/mutker/nexmon/internal/config"
	"codeberg.org/mutker/nexmon/internal/errors"
	"codeberg.org/mutker/nexmon/internal/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	loginPath  = "/api/aaaLogin.json"
	logoutPath = "/api/aaaLogout.json"

	// The API returns the session token as an APIC-cookie.
	tokenCookie = "APIC-cookie"
)

type moObject struct {
	Attributes map[string]any `json:"attributes"`
}

type envelope struct {
	Imdata []map[string]moObject `json:"imdata"`
}

// client is a single-switch API session. Not safe for concurrent use; the
// collector runs one client per switch per poll.
type client struct {
	base     string
	username string
	password string
	http     *http.Client
	token    string
}

func newClient(sw config.Switch) *client {
	transport := &http.Transport{
		//nolint:gosec // G402: verify_ssl=False in the inventory opts out of verification
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !sw.VerifySSL},
		Proxy:           nil,
	}

	return &client{
		base:     fmt.Sprintf("%s://%s:%d", sw.Protocol, sw.Addr, sw.Port),
		username: sw.Username,
		password: sw.Password,
		http: &http.Client{
			Transport: transport,
			Timeout:   sw.Timeout,
		},
	}
}

// Login obtains a session token. All subsequent queries reuse it.
func (c *client) Login(ctx context.Context) error {
	payload := map[string]any{
		"aaaUser": map[string]any{
			"attributes": map[string]string{
				"name": c.username,
				"pwd":  c.password,
			},
		},
	}

	rsp, err := c.do(ctx, http.MethodPost, loginPath, payload)
	if err != nil {
		if errors.HasCode(err, ErrBadStatus) {
			return errors.New().Wrap(ErrAuth, err)
		}

		return err
	}

	if len(rsp.Imdata) == 0 {
		return errors.New().WithMessage(ErrAuth, "empty login response")
	}
	login, ok := rsp.Imdata[0]["aaaLogin"]
	if !ok {
		return errors.New().WithMessage(ErrAuth, "aaaLogin not found in response")
	}
	token := stringAttr(login.Attributes, "token")
	if token == "" {
		return errors.New().WithMessage(ErrAuth, "token not found in response")
	}
	c.token = token

	return nil
}

// Logout releases the session. Best effort; a poll's data is already in hand.
func (c *client) Logout(ctx context.Context) {
	payload := map[string]any{
		"aaaUser": map[string]any{
			"attributes": map[string]string{"name": c.username},
		},
	}

	if _, err := c.do(ctx, http.MethodPost, logoutPath, payload); err != nil {
		logger.Warn().Err(err).Msg("Logout failed")
	}
}

// ClassQuery fetches one managed-object class and returns the flattened
// attribute maps, one per object instance.
func (c *client) ClassQuery(ctx context.Context, endpoint string) ([]map[string]any, error) {
	rsp, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	attrs := make([]map[string]any, 0, len(rsp.Imdata))
	for _, obj := range rsp.Imdata {
		for _, mo := range obj {
			if mo.Attributes != nil {
				attrs = append(attrs, mo.Attributes)
			}
		}
	}

	return attrs, nil
}

func (c *client) do(ctx context.Context, method, path string, payload any) (*envelope, error) {
	errFactory := errors.New()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, errFactory.Wrap(errors.ErrInternal, err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, errFactory.Wrap(ErrTransport, err)
	}
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: tokenCookie, Value: c.token})
	}

	rsp, err := c.http.Do(req)
	if err != nil {
		return nil, errFactory.Wrap(ErrTransport, err)
	}
	defer rsp.Body.Close()

	if rsp.StatusCode != http.StatusOK {
		return nil, errFactory.WithMessage(ErrBadStatus,
			fmt.Sprintf("%s returned status %d", path, rsp.StatusCode))
	}

	var env envelope
	if err := json.NewDecoder(rsp.Body).Decode(&env); err != nil {
		return nil, errFactory.Wrap(ErrBadResponse, err)
	}

	return &env, nil
}
