// Package gcloud resolves Google Cloud credentials from the environment.
//
// GOOGLE_CREDENTIALS (inline service account JSON) takes precedence over
// GOOGLE_APPLICATION_CREDENTIALS (path to a service account file). When
// neither is set, application default credentials are used.
package gcloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// ErrNoExplicitCredentials is returned by CredentialsJSON when neither variable is set.
var ErrNoExplicitCredentials = errors.New("neither GOOGLE_CREDENTIALS nor GOOGLE_APPLICATION_CREDENTIALS is set")

// CredentialsJSON returns the service account JSON configured in the environment.
func CredentialsJSON() ([]byte, error) {
	const op = "CredentialsJSON"

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []byte(credJSON), nil
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		data, err := os.ReadFile(credFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
		return data, nil
	}
	return nil, ErrNoExplicitCredentials
}

// ClientOptions returns options for gRPC-based Google clients (Vision, Document AI,
// Storage, Firestore).
func ClientOptions(scopes ...string) ([]option.ClientOption, error) {
	creds, err := CredentialsJSON()
	if errors.Is(err, ErrNoExplicitCredentials) {
		if len(scopes) == 0 {
			return nil, nil
		}
		return []option.ClientOption{option.WithScopes(scopes...)}, nil
	}
	if err != nil {
		return nil, err
	}

	opts := []option.ClientOption{option.WithCredentialsJSON(creds)}
	if len(scopes) > 0 {
		opts = append(opts, option.WithScopes(scopes...))
	}
	return opts, nil
}

// HTTPClient returns an authorized client for the REST APIs (Drive, Sheets).
// Service account credentials go through a JWT config; otherwise application
// default credentials are used.
func HTTPClient(ctx context.Context, scopes ...string) (*http.Client, error) {
	const op = "HTTPClient"

	creds, err := CredentialsJSON()
	switch {
	case errors.Is(err, ErrNoExplicitCredentials):
		client, err := google.DefaultClient(ctx, scopes...)
		if err != nil {
			return nil, fmt.Errorf("%s: no credentials in environment and default credentials failed: %w", op, err)
		}
		return client, nil
	case err != nil:
		return nil, err
	}

	config, err := google.JWTConfigFromJSON(creds, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}
	return config.Client(ctx), nil
}
