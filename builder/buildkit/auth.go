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
	"fmt"
	"strings"

	dockerconfig "github.com/docker/cli/cli/config"
	dockerregistry "github.com/docker/docker/api/types/registry"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/moby/buildkit/session"
	"github.com/moby/buildkit/session/auth/authprovider"

	"github.com/khulnasoft/ml-workspace-build/logging"
)

// ToDockerSDKAuth resolves registry credentials using go-containerregistry's
// DefaultKeychain and converts them to Docker SDK's X-Registry-Auth header format.
//
// If no credentials are found for the registry, returns an empty string (anonymous access).
// The registry parameter should be just the hostname (e.g., "ghcr.io", "docker.io").
func ToDockerSDKAuth(ctx context.Context, registry string) (string, error) {
	return dockerSDKAuth(ctx, authn.DefaultKeychain, registry)
}

func dockerSDKAuth(ctx context.Context, keychain authn.Keychain, registry string) (string, error) {
	ref, err := name.NewRegistry(registry, name.StrictValidation)
	if err != nil {
		return "", fmt.Errorf("invalid registry %s: %w", registry, err)
	}

	authenticator, err := keychain.Resolve(ref)
	if err != nil {
		logging.DebugContext(ctx, "No credentials found for registry %s, using anonymous access", registry)
		return "", nil
	}

	authConfig, err := authenticator.Authorization()
	if err != nil {
		logging.DebugContext(ctx, "Failed to get authorization for registry %s: %v, using anonymous access", registry, err)
		return "", nil
	}

	if authConfig.Username == "" && authConfig.Password == "" &&
		authConfig.IdentityToken == "" && authConfig.RegistryToken == "" {
		logging.DebugContext(ctx, "No credentials found for registry %s, using anonymous access", registry)
		return "", nil
	}

	if authConfig.Username != "" {
		logging.DebugContext(ctx, "Found credentials for registry %s (username: %s)", registry, authConfig.Username)
	} else {
		logging.DebugContext(ctx, "Found token-based credentials for registry %s", registry)
	}

	dockerAuth := dockerregistry.AuthConfig{
		Username:      authConfig.Username,
		Password:      authConfig.Password,
		IdentityToken: authConfig.IdentityToken,
		RegistryToken: authConfig.RegistryToken,
		ServerAddress: registry,
	}

	authJSON, err := json.Marshal(dockerAuth)
	if err != nil {
		return "", fmt.Errorf("failed to marshal auth config: %w", err)
	}

	return base64.URLEncoding.EncodeToString(authJSON), nil
}

// registryFromImageRef extracts the registry hostname from an image reference.
func registryFromImageRef(imageRef string) string {
	imageWithoutDigest := strings.SplitN(imageRef, "@", 2)[0]

	slashParts := strings.Split(imageWithoutDigest, "/")
	if len(slashParts) == 1 {
		return name.DefaultRegistry
	}

	candidate := slashParts[0]
	if strings.Contains(candidate, ".") || strings.Contains(candidate, ":") || candidate == "localhost" {
		return candidate
	}

	return name.DefaultRegistry
}

// createAuthProvider creates a BuildKit session auth provider from Docker config.
// This enables authentication for base image pulls from private registries.
// Returns nil if no Docker config is available (falls back to anonymous access).
func createAuthProvider(ctx context.Context) []session.Attachable {
	dockerCfg, err := dockerconfig.Load(dockerconfig.Dir())
	if err != nil {
		logging.DebugContext(ctx, "Failed to load Docker config for auth: %v (using anonymous access)", err)
		return nil
	}

	ap := authprovider.NewDockerAuthProvider(authprovider.DockerAuthProviderConfig{
		ConfigFile: dockerCfg,
	})

	logging.DebugContext(ctx, "Created auth provider from Docker config for base image pulls")
	return []session.Attachable{ap}
}
