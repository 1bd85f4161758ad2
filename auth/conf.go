package auth

import (
	"encoding/json"
	"fmt"
	"os"
)

// ErrMissingCredential reports a service account field required for the
// token exchange that was absent from the credential file.
type ErrMissingCredential struct {
	Field string
}

func (e *ErrMissingCredential) Error() string {
	return fmt.Sprintf("auth: service account missing %s", e.Field)
}

// ServiceAccount holds the push gateway service account credential. The JSON
// layout matches the key file downloaded from the provider console, so the
// file can be loaded as-is.
type ServiceAccount struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`
}

// LoadServiceAccount reads and validates a service account key file.
func LoadServiceAccount(path string) (ServiceAccount, error) {
	var sa ServiceAccount
	data, err := os.ReadFile(path)
	if err != nil {
		return sa, fmt.Errorf("auth: read service account: %w", err)
	}
	if err := json.Unmarshal(data, &sa); err != nil {
		return sa, fmt.Errorf("auth: parse service account: %w", err)
	}
	if err := sa.Validate(); err != nil {
		return sa, err
	}
	return sa, nil
}

// Validate checks the fields the exchange cannot work without and fills in
// the default token endpoint when the file omits it.
func (sa *ServiceAccount) Validate() error {
	switch {
	case sa.ClientEmail == "":
		return &ErrMissingCredential{Field: "client_email"}
	case sa.PrivateKey == "":
		return &ErrMissingCredential{Field: "private_key"}
	case sa.ProjectID == "":
		return &ErrMissingCredential{Field: "project_id"}
	}
	if sa.TokenURI == "" {
		sa.TokenURI = DefaultTokenURL
	}
	return nil
}
