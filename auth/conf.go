package auth

import (
	"fmt"

	"golang.org/x/oauth2/clientcredentials"
)

// Conf holds the OAuth2 client credentials used to obtain broker tokens.
type Conf struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	TokenURL     string   `json:"token_url"`
	Scopes       []string `json:"scopes"`
}

// Validate checks the fields required by the token endpoint.
func (c Conf) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" || c.TokenURL == "" {
		return fmt.Errorf("auth: client_id, client_secret and token_url are required")
	}
	return nil
}

func (c Conf) toOauth2Config() clientcredentials.Config {
	return clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.TokenURL,
		Scopes:       c.Scopes,
	}
}
