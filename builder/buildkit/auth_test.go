/*
Copyright © 2025 Jayson Grace <jayson.e.grace@gmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/

package buildkit

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	dockerregistry "github.com/docker/docker/api/types/registry"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticKeychain resolves credentials from a fixed map keyed by registry.
type staticKeychain map[string]authn.Authenticator

func (k staticKeychain) Resolve(r authn.Resource) (authn.Authenticator, error) {
	if a, ok := k[r.RegistryStr()]; ok {
		return a, nil
	}
	return authn.Anonymous, nil
}

type failingKeychain struct{}

func (failingKeychain) Resolve(authn.Resource) (authn.Authenticator, error) {
	return nil, errors.New("credential helper crashed")
}

func TestDockerSDKAuth(t *testing.T) {
	t.Parallel()

	keychain := staticKeychain{
		"ghcr.io":         authn.FromConfig(authn.AuthConfig{Username: "ci", Password: "s3cret"}),
		"registry.gitlab": authn.FromConfig(authn.AuthConfig{IdentityToken: "idtoken"}),
	}

	tests := []struct {
		name          string
		keychain      authn.Keychain
		registry      string
		wantAuth      *dockerregistry.AuthConfig
		wantErr       string
		wantAnonymous bool
	}{
		{
			name:     "basic credentials",
			keychain: keychain,
			registry: "ghcr.io",
			wantAuth: &dockerregistry.AuthConfig{Username: "ci", Password: "s3cret", ServerAddress: "ghcr.io"},
		},
		{
			name:     "identity token",
			keychain: keychain,
			registry: "registry.gitlab",
			wantAuth: &dockerregistry.AuthConfig{IdentityToken: "idtoken", ServerAddress: "registry.gitlab"},
		},
		{
			name:          "anonymous",
			keychain:      keychain,
			registry:      "index.docker.io",
			wantAnonymous: true,
		},
		{
			name:          "keychain failure falls back to anonymous",
			keychain:      failingKeychain{},
			registry:      "ghcr.io",
			wantAnonymous: true,
		},
		{
			name:     "invalid registry",
			keychain: keychain,
			registry: "not@valid",
			wantErr:  "invalid registry",
		},
		{
			name:     "empty registry",
			keychain: keychain,
			registry: "",
			wantErr:  "invalid registry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := dockerSDKAuth(context.Background(), tt.keychain, tt.registry)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)

			if tt.wantAnonymous {
				assert.Empty(t, got)
				return
			}

			decoded, err := base64.URLEncoding.DecodeString(got)
			require.NoError(t, err)
			var authConfig dockerregistry.AuthConfig
			require.NoError(t, json.Unmarshal(decoded, &authConfig))
			assert.Equal(t, *tt.wantAuth, authConfig)
		})
	}
}

func TestRegistryFromImageRef(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ref  string
		want string
	}{
		{ref: "ml-workspace:0.13.2", want: "index.docker.io"},
		{ref: "khulnasoft/ml-workspace-full:0.13.2", want: "index.docker.io"},
		{ref: "ghcr.io/acme/ml-workspace-gpu:1.0.0", want: "ghcr.io"},
		{ref: "localhost/ml-workspace:1", want: "localhost"},
		{ref: "localhost:5000/ml-workspace:1", want: "localhost:5000"},
		{ref: "ghcr.io/acme/ml-workspace@sha256:abc", want: "ghcr.io"},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, registryFromImageRef(tt.ref))
		})
	}
}

func TestCreateAuthProvider(t *testing.T) {
	t.Setenv("DOCKER_CONFIG", t.TempDir())

	attachables := createAuthProvider(context.Background())
	assert.Len(t, attachables, 1)
}
