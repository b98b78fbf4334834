package session

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrLoginFailed = errors.New("login failed")

// Credentials to the backing storage, opaque for orchestration.
//
// They are sent to workers as JSON.
type Credentials interface {
	// user who owns files copied with this.
	Owner() string

	json.Marshaler
}

// CredentialProvider derives Credentials of a storage backend from a login request.
type CredentialProvider interface {
	// Login makes Credentials for the authenticated user.
	//
	// body is the request body of the login call, may be empty.
	//
	// Errors are ErrLoginFailed (wrapped) when the request cannot be a login.
	Login(ctx context.Context, username string, body []byte) (Credentials, error)
}

// credentials of a user authenticated with bearer token.
type TokenCredentials struct {
	Username string `json:"username"`

	// token for the backing storage. optional.
	Token string `json:"token,omitempty"`
}

var _ Credentials = TokenCredentials{}

func (c TokenCredentials) Owner() string {
	return c.Username
}

func (c TokenCredentials) MarshalJSON() ([]byte, error) {
	type plain TokenCredentials
	return json.Marshal(plain(c))
}

// ParseTokenCredentials reads TokenCredentials marshalled as JSON.
func ParseTokenCredentials(b []byte) (TokenCredentials, error) {
	c := TokenCredentials{}
	if err := json.Unmarshal(b, &c); err != nil {
		return TokenCredentials{}, err
	}
	if c.Username == "" {
		return TokenCredentials{}, errors.New("credentials: username is empty")
	}
	return c, nil
}

// TokenProvider makes TokenCredentials.
//
// Login body is optional. If given, it should be `{"token": "..."}`.
type TokenProvider struct{}

var _ CredentialProvider = TokenProvider{}

func (TokenProvider) Login(_ context.Context, username string, body []byte) (Credentials, error) {
	if username == "" {
		return nil, errors.Join(ErrLoginFailed, errors.New("no username"))
	}

	c := TokenCredentials{Username: username}
	if len(body) == 0 {
		return c, nil
	}

	payload := struct {
		Token string `json:"token"`
	}{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.Join(ErrLoginFailed, err)
	}
	c.Token = payload.Token
	return c, nil
}
