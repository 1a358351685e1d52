// Package credential stores API secrets in the system keyring, with
// environment variables as an override for headless use.
package credential

import (
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

const serviceName = "proverview"

// Keys under which the two secrets are stored.
const (
	KeyJiraToken            = "jira-api-token"
	KeyBitbucketAppPassword = "bitbucket-app-password"
)

// Environment variables that take precedence over the keyring.
const (
	EnvJiraToken            = "JIRA_API_TOKEN"
	EnvBitbucketAppPassword = "BITBUCKET_APP_PASSWORD"
)

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/proverview/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("proverview-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// Resolve returns the secret for key, preferring the environment
// variable when it is set. A missing secret is not an error here;
// callers decide whether an empty value is fatal.
func Resolve(envVar, key string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}

	value, err := Get(key)
	if err != nil {
		return ""
	}
	return value
}

// JiraToken resolves the Jira personal access token.
func JiraToken() string {
	return Resolve(EnvJiraToken, KeyJiraToken)
}

// BitbucketAppPassword resolves the Bitbucket app password.
func BitbucketAppPassword() string {
	return Resolve(EnvBitbucketAppPassword, KeyBitbucketAppPassword)
}
