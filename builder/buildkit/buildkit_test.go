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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	dockercontainer "github.com/docker/docker/api/types/container"
	dockerimage "github.com/docker/docker/api/types/image"
	"github.com/moby/buildkit/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khulnasoft/ml-workspace-build/builder"
	"github.com/khulnasoft/ml-workspace-build/config"
)

func newTestBuildContext(t *testing.T) config.BuildConfig {
	t.Helper()
	dir := t.TempDir()
	dockerfile := filepath.Join(dir, "Dockerfile")
	require.NoError(t, os.WriteFile(dockerfile, []byte("FROM ubuntu:22.04\n"), 0o644))
	return config.BuildConfig{Context: dir, Dockerfile: dockerfile}
}

func testRequest() builder.ImageBuildRequest {
	return builder.ImageBuildRequest{
		Name:    "ml-workspace-full",
		Version: "0.13.2",
		Args: map[string]string{
			"ARG_WORKSPACE_FLAVOR":  "full",
			"ARG_WORKSPACE_VERSION": "0.13.2",
		},
		Labels: map[string]string{
			"org.opencontainers.image.revision": "a1b2c3d",
		},
	}
}

func TestBuild(t *testing.T) {
	t.Setenv("DOCKER_CONFIG", t.TempDir())
	build := newTestBuildContext(t)
	build.Platform = "linux/amd64"
	build.CacheFrom = []string{"type=registry,ref=ghcr.io/acme/cache"}

	var loaded string
	docker := &MockDockerClient{
		ImageLoadFunc: func(ctx context.Context, input io.Reader) (dockerimage.LoadResponse, error) {
			data, err := io.ReadAll(input)
			if err != nil {
				return dockerimage.LoadResponse{}, err
			}
			loaded = string(data)
			return dockerimage.LoadResponse{
				Body: io.NopCloser(strings.NewReader(`{"stream":"Loaded image: ml-workspace-full:0.13.2\n"}`)),
			}, nil
		},
		ImageInspectFunc: func(ctx context.Context, imageID string) (dockerimage.InspectResponse, error) {
			assert.Equal(t, "ml-workspace-full:0.13.2", imageID)
			return dockerimage.InspectResponse{ID: "sha256:abc123"}, nil
		},
	}
	solver := &mockSolver{}

	b := &BuildKitBuilder{client: solver, dockerClient: docker, build: build}
	result, err := b.Build(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "ml-workspace-full:0.13.2", result.ImageRef)
	assert.Equal(t, "sha256:abc123", result.Digest)
	assert.NotEmpty(t, result.Duration)
	assert.Equal(t, "image tar", loaded)

	require.Len(t, solver.opts, 1)
	opt := solver.opts[0]
	assert.Equal(t, "dockerfile.v0", opt.Frontend)
	assert.Equal(t, "Dockerfile", opt.FrontendAttrs["filename"])
	assert.Equal(t, "full", opt.FrontendAttrs["build-arg:ARG_WORKSPACE_FLAVOR"])
	assert.Equal(t, "0.13.2", opt.FrontendAttrs["build-arg:ARG_WORKSPACE_VERSION"])
	assert.Equal(t, "linux/amd64", opt.FrontendAttrs["platform"])
	assert.NotContains(t, opt.FrontendAttrs, "no-cache")
	assert.Equal(t, build.Context, opt.LocalDirs["context"])
	require.Len(t, opt.Exports, 1)
	assert.Equal(t, client.ExporterDocker, opt.Exports[0].Type)
	assert.Equal(t, "ml-workspace-full:0.13.2", opt.Exports[0].Attrs["name"])
	assert.Equal(t, "a1b2c3d", opt.Exports[0].Attrs["label:org.opencontainers.image.revision"])
	require.Len(t, opt.CacheImports, 1)
	assert.Equal(t, "registry", opt.CacheImports[0].Type)
	assert.Equal(t, "ghcr.io/acme/cache", opt.CacheImports[0].Attrs["ref"])
}

func TestBuild_NoCacheSkipsCacheEntries(t *testing.T) {
	build := newTestBuildContext(t)
	build.NoCache = true
	build.CacheFrom = []string{"type=registry,ref=ghcr.io/acme/cache"}

	solver := &mockSolver{}
	b := &BuildKitBuilder{client: solver, dockerClient: &MockDockerClient{}, build: build}

	_, err := b.Build(context.Background(), testRequest())
	require.NoError(t, err)
	require.Len(t, solver.opts, 1)
	assert.Contains(t, solver.opts[0].FrontendAttrs, "no-cache")
	assert.Empty(t, solver.opts[0].CacheImports)
}

func TestBuild_Failures(t *testing.T) {
	tests := []struct {
		name      string
		build     func(t *testing.T) config.BuildConfig
		solveErr  error
		loadErr   error
		errSubstr string
	}{
		{
			name: "missing dockerfile",
			build: func(t *testing.T) config.BuildConfig {
				return config.BuildConfig{Context: t.TempDir(), Dockerfile: filepath.Join(t.TempDir(), "Dockerfile")}
			},
			errSubstr: "dockerfile not found",
		},
		{
			name:      "solve fails",
			build:     newTestBuildContext,
			solveErr:  errors.New("process \"/bin/sh -c apt-get install\" did not complete successfully: exit code: 100"),
			errSubstr: "dockerfile build failed",
		},
		{
			name:      "load fails",
			build:     newTestBuildContext,
			loadErr:   errors.New("daemon unavailable"),
			errSubstr: "failed to load image into Docker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			solver := &mockSolver{
				SolveFunc: func(ctx context.Context, opt client.SolveOpt) error { return tt.solveErr },
			}
			docker := &MockDockerClient{
				ImageLoadFunc: func(ctx context.Context, input io.Reader) (dockerimage.LoadResponse, error) {
					if tt.loadErr != nil {
						return dockerimage.LoadResponse{}, tt.loadErr
					}
					return dockerimage.LoadResponse{Body: io.NopCloser(strings.NewReader(""))}, nil
				},
			}

			b := &BuildKitBuilder{client: solver, dockerClient: docker, build: tt.build(t)}
			_, err := b.Build(context.Background(), testRequest())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestLoadImage_ErrorInStream(t *testing.T) {
	docker := &MockDockerClient{
		ImageLoadFunc: func(ctx context.Context, input io.Reader) (dockerimage.LoadResponse, error) {
			return dockerimage.LoadResponse{
				Body: io.NopCloser(strings.NewReader(`{"errorDetail":{"message":"invalid tar header"},"error":"invalid tar header"}`)),
			}, nil
		},
	}
	b := &BuildKitBuilder{dockerClient: docker}

	tarPath := filepath.Join(t.TempDir(), "image.tar")
	require.NoError(t, os.WriteFile(tarPath, []byte("junk"), 0o644))

	err := b.loadImage(context.Background(), tarPath, "ml-workspace-full:0.13.2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid tar header")

	err = b.loadImage(context.Background(), filepath.Join(t.TempDir(), "missing.tar"), "x:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open image tar")
}

func TestDockerPusher_Push(t *testing.T) {
	tests := []struct {
		name          string
		imageRef      string
		prefix        string
		pushBody      string
		pushErr       error
		tagErr        error
		inspect       dockerimage.InspectResponse
		wantPushedRef string
		wantTag       bool
		wantDigest    string
		wantErr       string
	}{
		{
			name:          "digest from aux message",
			imageRef:      "ml-workspace-full:0.13.2",
			prefix:        "khulnasoft/",
			pushBody:      `{"status":"Pushed"}` + "\n" + `{"aux":{"Tag":"0.13.2","Digest":"sha256:def456","Size":1234}}`,
			wantPushedRef: "khulnasoft/ml-workspace-full:0.13.2",
			wantTag:       true,
			wantDigest:    "sha256:def456",
		},
		{
			name:     "digest from repo digests",
			imageRef: "ml-workspace-light:0.13.2",
			prefix:   "ghcr.io/acme/",
			pushBody: `{"status":"Pushed"}`,
			inspect: dockerimage.InspectResponse{
				RepoDigests: []string{"ghcr.io/acme/ml-workspace-light@sha256:789abc"},
			},
			wantPushedRef: "ghcr.io/acme/ml-workspace-light:0.13.2",
			wantTag:       true,
			wantDigest:    "sha256:789abc",
		},
		{
			name:     "repo digest of another repository is ignored",
			imageRef: "ml-workspace-light:0.13.2",
			prefix:   "ghcr.io/acme/",
			pushBody: `{"status":"Pushed"}`,
			inspect: dockerimage.InspectResponse{
				RepoDigests: []string{
					"khulnasoft/ml-workspace-light@sha256:0ld",
					"ghcr.io/acme/ml-workspace-light@sha256:789abc",
				},
			},
			wantPushedRef: "ghcr.io/acme/ml-workspace-light:0.13.2",
			wantTag:       true,
			wantDigest:    "sha256:789abc",
		},
		{
			name:     "no repo digest for the pushed repository",
			imageRef: "ml-workspace-light:0.13.2",
			prefix:   "ghcr.io/acme/",
			pushBody: `{"status":"Pushed"}`,
			inspect: dockerimage.InspectResponse{
				RepoDigests: []string{"quay.io/other/ml-workspace-light@sha256:0ld"},
			},
			wantPushedRef: "ghcr.io/acme/ml-workspace-light:0.13.2",
			wantTag:       true,
		},
		{
			name:          "no prefix pushes as is",
			imageRef:      "localhost:5000/ml-workspace:1.0.0",
			pushBody:      `{"status":"Pushed"}`,
			wantPushedRef: "localhost:5000/ml-workspace:1.0.0",
		},
		{
			name:     "push call fails",
			imageRef: "ml-workspace-full:0.13.2",
			prefix:   "khulnasoft/",
			pushErr:  fmt.Errorf("authentication required"),
			wantErr:  "authentication required",
		},
		{
			name:     "error in push stream",
			imageRef: "ml-workspace-full:0.13.2",
			prefix:   "khulnasoft/",
			pushBody: `{"errorDetail":{"message":"denied: requested access to the resource is denied"},"error":"denied: requested access to the resource is denied"}`,
			wantErr:  "push failed: denied",
		},
		{
			name:     "tag fails",
			imageRef: "ml-workspace-full:0.13.2",
			prefix:   "khulnasoft/",
			tagErr:   errors.New("no such image"),
			wantErr:  "failed to tag image with registry prefix",
		},
	}

	t.Setenv("DOCKER_CONFIG", t.TempDir())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pushedRef, tagged string
			docker := &MockDockerClient{
				ImageTagFunc: func(ctx context.Context, source, target string) error {
					tagged = source + "->" + target
					return tt.tagErr
				},
				ImagePushFunc: func(ctx context.Context, image string, options dockerimage.PushOptions) (io.ReadCloser, error) {
					pushedRef = image
					if tt.pushErr != nil {
						return nil, tt.pushErr
					}
					return io.NopCloser(strings.NewReader(tt.pushBody)), nil
				},
				ImageInspectFunc: func(ctx context.Context, imageID string) (dockerimage.InspectResponse, error) {
					return tt.inspect, nil
				},
			}

			p := &DockerPusher{docker: docker}
			digest, err := p.Push(context.Background(), tt.imageRef, tt.prefix)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantDigest, digest)
			assert.Equal(t, tt.wantPushedRef, pushedRef)
			if tt.wantTag {
				assert.Equal(t, tt.imageRef+"->"+tt.wantPushedRef, tagged)
			} else {
				assert.Empty(t, tagged)
			}
		})
	}
}

func TestGetLocalImageDigest(t *testing.T) {
	tests := []struct {
		name    string
		inspect dockerimage.InspectResponse
		err     error
		want    string
	}{
		{
			name:    "repo digest preferred",
			inspect: dockerimage.InspectResponse{ID: "sha256:id", RepoDigests: []string{"khulnasoft/ml-workspace@sha256:repo"}},
			want:    "sha256:repo",
		},
		{
			name:    "falls back to ID",
			inspect: dockerimage.InspectResponse{ID: "sha256:id"},
			want:    "sha256:id",
		},
		{
			name: "inspect failure",
			err:  errors.New("no such image"),
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docker := &MockDockerClient{
				ImageInspectFunc: func(ctx context.Context, imageID string) (dockerimage.InspectResponse, error) {
					return tt.inspect, tt.err
				},
			}
			b := &BuildKitBuilder{dockerClient: docker}
			assert.Equal(t, tt.want, b.getLocalImageDigest(context.Background(), "ml-workspace:1"))
		})
	}
}

func TestDetectBuildxBuilder(t *testing.T) {
	tests := []struct {
		name          string
		containers    []dockercontainer.Summary
		listErr       error
		wantBuilder   string
		wantContainer string
		wantErr       string
	}{
		{
			name: "running builder",
			containers: []dockercontainer.Summary{
				{Names: []string{"/workspace-test-full"}, State: "running"},
				{Names: []string{"/buildx_buildkit_ci0"}, State: "running"},
			},
			wantBuilder:   "ci",
			wantContainer: "buildx_buildkit_ci0",
		},
		{
			name: "stopped builder ignored",
			containers: []dockercontainer.Summary{
				{Names: []string{"/buildx_buildkit_old0"}, State: "exited"},
			},
			wantErr: "no running buildx builder found",
		},
		{
			name:    "list fails",
			listErr: errors.New("permission denied"),
			wantErr: "failed to list containers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docker := &MockDockerClient{
				ContainerListFunc: func(ctx context.Context, options dockercontainer.ListOptions) ([]dockercontainer.Summary, error) {
					assert.True(t, options.All)
					return tt.containers, tt.listErr
				},
			}

			builderName, containerName, err := detectBuildxBuilder(context.Background(), docker)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBuilder, builderName)
			assert.Equal(t, tt.wantContainer, containerName)
		})
	}
}

func TestParseCacheAttrs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, map[string]string{
		"type": "registry",
		"ref":  "user/app:cache",
		"mode": "max",
	}, parseCacheAttrs("type=registry, ref=user/app:cache,mode=max"))
	assert.Empty(t, parseCacheAttrs("garbage"))
}

func TestCacheEntries(t *testing.T) {
	t.Parallel()

	entries := cacheEntries([]string{"type=local,src=/tmp/cache", "ref=user/app:cache"})
	require.Len(t, entries, 2)
	assert.Equal(t, client.CacheOptionsEntry{Type: "local", Attrs: map[string]string{"src": "/tmp/cache"}}, entries[0])
	assert.Equal(t, client.CacheOptionsEntry{Type: "registry", Attrs: map[string]string{"ref": "user/app:cache"}}, entries[1])
}

func TestFrontendAttributes(t *testing.T) {
	t.Parallel()

	attrs := frontendAttributes(config.BuildConfig{}, "Dockerfile.gpu", builder.ImageBuildRequest{
		Args: map[string]string{"ARG_WORKSPACE_BASE_IMAGE": "ml-workspace:0.13.2"},
	})
	assert.Equal(t, map[string]string{
		"filename":                           "Dockerfile.gpu",
		"build-arg:ARG_WORKSPACE_BASE_IMAGE": "ml-workspace:0.13.2",
	}, attrs)
}

func TestBuildExportAttributes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, map[string]string{"name": "test:latest"}, buildExportAttributes("test:latest", nil))
	assert.Equal(t, map[string]string{
		"name":          "test:v1",
		"label:version": "1.0",
	}, buildExportAttributes("test:v1", map[string]string{"version": "1.0"}))
}

func TestRepoDigest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		digests    []string
		repository string
		want       string
	}{
		{name: "any repository", digests: []string{"no-at-sign", "repo@sha256:abc"}, want: "sha256:abc"},
		{name: "empty", want: ""},
		{name: "missing digest", digests: []string{"repo@"}, want: ""},
		{
			name:       "docker hub names are normalized",
			digests:    []string{"ghcr.io/acme/ml-workspace@sha256:other", "khulnasoft/ml-workspace@sha256:hub"},
			repository: "index.docker.io/khulnasoft/ml-workspace",
			want:       "sha256:hub",
		},
		{
			name:       "no matching repository",
			digests:    []string{"ghcr.io/acme/ml-workspace@sha256:other"},
			repository: "index.docker.io/khulnasoft/ml-workspace",
			want:       "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, repoDigest(tt.digests, tt.repository))
		})
	}
}

func TestRepositoryOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "index.docker.io/khulnasoft/ml-workspace-gpu", repositoryOf("khulnasoft/ml-workspace-gpu:0.13.0"))
	assert.Equal(t, "ghcr.io/acme/ml-workspace", repositoryOf("ghcr.io/acme/ml-workspace:1.0.0"))
	assert.Empty(t, repositoryOf("Not A Reference"))
}

func TestBuildKitBuilder_PushSharesDockerConnection(t *testing.T) {
	t.Setenv("DOCKER_CONFIG", t.TempDir())

	var pushedRef string
	closed := 0
	docker := &MockDockerClient{
		ImagePushFunc: func(ctx context.Context, image string, options dockerimage.PushOptions) (io.ReadCloser, error) {
			pushedRef = image
			return io.NopCloser(strings.NewReader(`{"aux":{"Digest":"sha256:abc"}}`)), nil
		},
		CloseFunc: func() error {
			closed++
			return nil
		},
	}

	b := &BuildKitBuilder{client: &mockSolver{}, dockerClient: docker}
	digest, err := b.Push(context.Background(), "ml-workspace:1.0.0", "khulnasoft/")
	require.NoError(t, err)
	assert.Equal(t, "sha256:abc", digest)
	assert.Equal(t, "khulnasoft/ml-workspace:1.0.0", pushedRef)
	assert.Zero(t, closed)

	require.NoError(t, b.Close())
	assert.Equal(t, 1, closed)
}

func TestDockerPusher_Close(t *testing.T) {
	t.Parallel()

	assert.NoError(t, (&DockerPusher{}).Close())
	assert.NoError(t, (&DockerPusher{docker: &MockDockerClient{}}).Close())

	err := (&DockerPusher{docker: &MockDockerClient{CloseFunc: func() error { return errors.New("docker closed") }}}).Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to close Docker client: docker closed")
}

func TestClose(t *testing.T) {
	b := &BuildKitBuilder{
		client:       &mockSolver{CloseFunc: func() error { return errors.New("grpc closed") }},
		dockerClient: &MockDockerClient{CloseFunc: func() error { return errors.New("docker closed") }},
	}
	err := b.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to close BuildKit client: grpc closed")
	assert.Contains(t, err.Error(), "failed to close Docker client: docker closed")

	assert.NoError(t, (&BuildKitBuilder{client: &mockSolver{}, dockerClient: &MockDockerClient{}}).Close())
}

func TestClientOptions(t *testing.T) {
	opts, err := clientOptions(context.Background(), "docker-container://buildx_buildkit_default0", config.BuildKitConfig{})
	require.NoError(t, err)
	assert.Empty(t, opts)

	opts, err = clientOptions(context.Background(), "tcp://buildkit:1234", config.BuildKitConfig{})
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	_, err = clientOptions(context.Background(), "tcp://buildkit:1234", config.BuildKitConfig{
		TLSEnabled: true,
		TLSCACert:  filepath.Join(t.TempDir(), "missing.pem"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load TLS config")
}

func TestLoadTLSConfig(t *testing.T) {
	dir := t.TempDir()
	caCertPath, certPath, keyPath := generateTestCerts(t, dir)

	emptyCA := filepath.Join(dir, "empty.pem")
	require.NoError(t, os.WriteFile(emptyCA, []byte("not a cert"), 0o644))

	tests := []struct {
		name      string
		cfg       config.BuildKitConfig
		wantRoots bool
		wantCerts int
		wantErr   string
	}{
		{name: "empty config", cfg: config.BuildKitConfig{}},
		{
			name:      "ca and client cert",
			cfg:       config.BuildKitConfig{TLSCACert: caCertPath, TLSCert: certPath, TLSKey: keyPath},
			wantRoots: true,
			wantCerts: 1,
		},
		{
			name:      "cert without key is ignored",
			cfg:       config.BuildKitConfig{TLSCert: certPath},
			wantCerts: 0,
		},
		{
			name:    "swapped cert and key",
			cfg:     config.BuildKitConfig{TLSCert: keyPath, TLSKey: certPath},
			wantErr: "failed to load client cert/key",
		},
		{
			name:    "unparseable CA",
			cfg:     config.BuildKitConfig{TLSCACert: emptyCA},
			wantErr: "failed to parse CA cert",
		},
		{
			name:    "missing CA",
			cfg:     config.BuildKitConfig{TLSCACert: filepath.Join(dir, "nope.pem")},
			wantErr: "failed to read CA cert",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tlsCfg, err := loadTLSConfig(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint16(tls.VersionTLS13), tlsCfg.MinVersion)
			assert.Equal(t, tt.wantRoots, tlsCfg.RootCAs != nil)
			assert.Len(t, tlsCfg.Certificates, tt.wantCerts)
		})
	}
}

// generateTestCerts creates a CA and a client certificate signed by it.
func generateTestCerts(t *testing.T, dir string) (caCertPath, certPath, keyPath string) {
	t.Helper()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	caTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	caCertDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	require.NoError(t, err)

	caCertPath = filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(caCertPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caCertDER}), 0o644))

	clientKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	clientTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "Test Client"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	clientCertDER, err := x509.CreateCertificate(rand.Reader, clientTemplate, caTemplate, &clientKey.PublicKey, caKey)
	require.NoError(t, err)

	certPath = filepath.Join(dir, "cert.pem")
	require.NoError(t, os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: clientCertDER}), 0o644))

	clientKeyBytes, err := x509.MarshalECPrivateKey(clientKey)
	require.NoError(t, err)
	keyPath = filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: clientKeyBytes}), 0o644))

	return caCertPath, certPath, keyPath
}
