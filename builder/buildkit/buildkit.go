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

// Package buildkit implements builder.ImageBuilder with Docker BuildKit.
//
// Images are built with the dockerfile.v0 frontend, exported as a docker
// tarball, loaded into the local Docker daemon and pushed through the Docker
// Engine API.
package buildkit

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/moby/buildkit/client"
	"github.com/moby/buildkit/client/llb"
	digest "github.com/opencontainers/go-digest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	// CRITICAL: This enables docker-container:// protocol
	_ "github.com/moby/buildkit/client/connhelper/dockercontainer"

	"github.com/khulnasoft/ml-workspace-build/builder"
	"github.com/khulnasoft/ml-workspace-build/config"
	"github.com/khulnasoft/ml-workspace-build/errors"
	"github.com/khulnasoft/ml-workspace-build/logging"
)

// solver is the part of the BuildKit client used for builds.
type solver interface {
	Solve(ctx context.Context, def *llb.Definition, opt client.SolveOpt, statusChan chan *client.SolveStatus) (*client.SolveResponse, error)
	Close() error
}

// BuildKitBuilder implements container image building using Docker BuildKit.
type BuildKitBuilder struct {
	client        solver
	dockerClient  DockerClient
	builderName   string
	containerName string
	build         config.BuildConfig
}

// Verify that BuildKitBuilder implements builder.ImageBuilder at compile time
var _ builder.ImageBuilder = (*BuildKitBuilder)(nil)

// NewBuildKitBuilder creates a new BuildKit builder instance.
// Supports auto-detect, explicit endpoint (docker-container://, tcp://, unix://), and remote TCP with TLS.
func NewBuildKitBuilder(ctx context.Context, cfg *config.Config) (*BuildKitBuilder, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	docker, err := connectDocker(ctx)
	if err != nil {
		return nil, err
	}

	var addr, builderName, containerName string
	if cfg.BuildKit.Endpoint != "" {
		addr = cfg.BuildKit.Endpoint
		logging.InfoContext(ctx, "Using configured BuildKit endpoint: %s", logging.RedactURL(addr))
	} else {
		builderName, containerName, err = detectBuildxBuilder(ctx, docker)
		if err != nil {
			_ = docker.Close()
			return nil, errors.Wrap("detect buildx builder", "set buildkit.endpoint in config for remote BuildKit", err)
		}
		addr = fmt.Sprintf("docker-container://%s", containerName)
		logging.InfoContext(ctx, "Auto-detected BuildKit builder: %s", containerName)
	}

	clientOpts, err := clientOptions(ctx, addr, cfg.BuildKit)
	if err != nil {
		_ = docker.Close()
		return nil, err
	}

	c, err := client.New(ctx, addr, clientOpts...)
	if err != nil {
		_ = docker.Close()
		return nil, errors.Wrap("connect to BuildKit", "", err)
	}

	info, err := c.Info(ctx)
	if err != nil {
		_ = c.Close()
		_ = docker.Close()
		return nil, errors.Wrap("verify BuildKit connection", "", err)
	}

	logging.InfoContext(ctx, "BuildKit client connected (version %s)", info.BuildkitVersion.Version)

	return &BuildKitBuilder{
		client:        c,
		dockerClient:  docker,
		builderName:   builderName,
		containerName: containerName,
		build:         cfg.Build,
	}, nil
}

// clientOptions returns the gRPC dial options for addr.
func clientOptions(ctx context.Context, addr string, cfg config.BuildKitConfig) ([]client.ClientOpt, error) {
	if !strings.HasPrefix(addr, "tcp://") {
		return nil, nil
	}

	if cfg.TLSEnabled {
		tlsConfig, err := loadTLSConfig(cfg)
		if err != nil {
			return nil, errors.Wrap("load TLS config", "", err)
		}
		logging.InfoContext(ctx, "TLS enabled for BuildKit connection")
		return []client.ClientOpt{client.WithGRPCDialOption(
			grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)),
		)}, nil
	}

	logging.WarnContext(ctx, "Connecting to BuildKit without TLS (insecure)")
	return []client.ClientOpt{client.WithGRPCDialOption(
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)}, nil
}

// loadTLSConfig creates a TLS configuration for secure BuildKit connections.
//
// The function configures:
//   - TLS 1.3 minimum version
//   - Optional CA certificate for server verification (cfg.TLSCACert)
//   - Optional client certificate for mutual TLS (cfg.TLSCert + cfg.TLSKey)
func loadTLSConfig(cfg config.BuildKitConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS13,
	}

	if cfg.TLSCACert != "" {
		caCert, err := os.ReadFile(cfg.TLSCACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA cert")
		}
		tlsConfig.RootCAs = caCertPool
	}

	if cfg.TLSCert != "" && cfg.TLSKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert/key: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// detectBuildxBuilder scans running containers for a buildx builder instance
// (containers named "buildx_buildkit_<name>0") and returns the builder name
// and container name.
func detectBuildxBuilder(ctx context.Context, docker DockerClient) (string, string, error) {
	containers, err := docker.ContainerList(ctx, dockercontainer.ListOptions{
		All: true,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to list containers: %w", err)
	}

	for _, container := range containers {
		if container.State != "running" {
			continue
		}

		for _, name := range container.Names {
			name = strings.TrimPrefix(name, "/")

			if strings.HasPrefix(name, "buildx_buildkit_") {
				builderName := strings.TrimPrefix(name, "buildx_buildkit_")
				builderName = strings.TrimSuffix(builderName, "0")

				logging.DebugContext(ctx, "Found buildx builder: %s (container: %s)", builderName, name)
				return builderName, name, nil
			}
		}
	}

	return "", "", fmt.Errorf("no running buildx builder found\n\nRun 'docker buildx create --use' to create one")
}

// parseCacheAttrs parses cache attribute strings like "type=registry,ref=user/app:cache,mode=max"
// and returns a map of attributes suitable for BuildKit
func parseCacheAttrs(cacheSpec string) map[string]string {
	attrs := make(map[string]string)

	for _, pair := range strings.Split(cacheSpec, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) == 2 {
			attrs[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
	}

	return attrs
}

// cacheEntries converts cache specs into BuildKit cache entries. The cache
// type defaults to registry when a spec does not name one.
func cacheEntries(specs []string) []client.CacheOptionsEntry {
	entries := make([]client.CacheOptionsEntry, 0, len(specs))
	for _, spec := range specs {
		attrs := parseCacheAttrs(spec)
		cacheType := attrs["type"]
		if cacheType == "" {
			cacheType = "registry"
		}
		delete(attrs, "type")
		entries = append(entries, client.CacheOptionsEntry{Type: cacheType, Attrs: attrs})
	}
	return entries
}

// buildExportAttributes creates export attributes for BuildKit including labels
func buildExportAttributes(imageName string, labels map[string]string) map[string]string {
	exportAttrs := map[string]string{
		"name": imageName,
	}

	for key, value := range labels {
		// BuildKit expects labels in the format "label:key=value"
		exportAttrs[fmt.Sprintf("label:%s", key)] = value
	}

	return exportAttrs
}

// frontendAttributes returns the dockerfile.v0 frontend attributes for req.
func frontendAttributes(build config.BuildConfig, dockerfileName string, req builder.ImageBuildRequest) map[string]string {
	attrs := map[string]string{
		"filename": dockerfileName,
	}

	for key, value := range req.Args {
		attrs[fmt.Sprintf("build-arg:%s", key)] = value
	}

	if build.Platform != "" {
		attrs["platform"] = build.Platform
	}

	if build.NoCache {
		attrs["no-cache"] = ""
	}

	return attrs
}

// Build builds an image from the configured Dockerfile with BuildKit's
// native client and loads it into the local Docker daemon.
func (b *BuildKitBuilder) Build(ctx context.Context, req builder.ImageBuildRequest) (*builder.BuildResult, error) {
	startTime := time.Now()
	imageName := req.ImageRef()

	buildContext, err := filepath.Abs(b.build.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve build context: %w", err)
	}
	dockerfilePath, err := filepath.Abs(b.build.Dockerfile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Dockerfile path: %w", err)
	}
	if _, err := os.Stat(dockerfilePath); err != nil {
		return nil, fmt.Errorf("dockerfile not found: %w", err)
	}

	logging.DebugContext(ctx, "Dockerfile: %s, Context: %s", dockerfilePath, buildContext)

	imageTar, err := os.CreateTemp("", "ml-workspace-image-*.tar")
	if err != nil {
		return nil, fmt.Errorf("failed to create image tar: %w", err)
	}
	imageTarPath := imageTar.Name()
	_ = imageTar.Close()
	defer func() {
		if err := os.Remove(imageTarPath); err != nil && !os.IsNotExist(err) {
			logging.WarnContext(ctx, "Failed to remove temporary image tar: %v", err)
		}
	}()

	solveOpt := client.SolveOpt{
		Frontend:      "dockerfile.v0",
		FrontendAttrs: frontendAttributes(b.build, filepath.Base(dockerfilePath), req),
		Exports: []client.ExportEntry{
			{
				Type:   client.ExporterDocker,
				Output: fixedWriteCloser(imageTarPath),
				Attrs:  buildExportAttributes(imageName, req.Labels),
			},
		},
		LocalDirs: map[string]string{
			"context":    buildContext,
			"dockerfile": filepath.Dir(dockerfilePath),
		},
		Session: createAuthProvider(ctx),
	}

	if !b.build.NoCache {
		solveOpt.CacheImports = cacheEntries(b.build.CacheFrom)
		solveOpt.CacheExports = cacheEntries(b.build.CacheTo)
	}

	ch := make(chan *client.SolveStatus)
	done := make(chan struct{})

	go b.displayProgress(ctx, ch, done)

	_, err = b.client.Solve(ctx, nil, solveOpt, ch)
	<-done

	if err != nil {
		return nil, fmt.Errorf("dockerfile build failed: %w", err)
	}

	if err := b.loadImage(ctx, imageTarPath, imageName); err != nil {
		return nil, err
	}

	return &builder.BuildResult{
		ImageRef: imageName,
		Digest:   b.getLocalImageDigest(ctx, imageName),
		Duration: time.Since(startTime).Round(time.Millisecond).String(),
	}, nil
}

// fixedWriteCloser returns an exporter output function that writes to filepath.
func fixedWriteCloser(filepath string) func(map[string]string) (io.WriteCloser, error) {
	return func(map[string]string) (io.WriteCloser, error) {
		f, err := os.Create(filepath)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}

// displayProgress consumes BuildKit solve status updates until ch is closed,
// then closes done.
func (b *BuildKitBuilder) displayProgress(ctx context.Context, ch <-chan *client.SolveStatus, done chan<- struct{}) {
	defer close(done)

	for status := range ch {
		// codespell:ignore vertexes
		for _, vertex := range status.Vertexes {
			if vertex.Name != "" {
				logging.DebugContext(ctx, "[%s] %s", shortDigest(vertex.Digest), vertex.Name)
			}
		}
		for _, log := range status.Logs {
			logging.PrintContext(ctx, string(log.Data))
		}
	}
}

func shortDigest(d digest.Digest) string {
	if err := d.Validate(); err != nil {
		return d.String()
	}
	encoded := d.Encoded()
	if len(encoded) > 12 {
		encoded = encoded[:12]
	}
	return encoded
}

// loadImage loads the built Docker image tar into Docker using the Docker SDK.
func (b *BuildKitBuilder) loadImage(ctx context.Context, imageTarPath, imageName string) error {
	logging.InfoContext(ctx, "Loading image into Docker...")
	imageFile, err := os.Open(imageTarPath)
	if err != nil {
		return fmt.Errorf("failed to open image tar: %w", err)
	}
	defer func() {
		if err := imageFile.Close(); err != nil {
			logging.WarnContext(ctx, "Failed to close image file: %v", err)
		}
	}()

	resp, err := b.dockerClient.ImageLoad(ctx, imageFile)
	if err != nil {
		return fmt.Errorf("failed to load image into Docker: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.WarnContext(ctx, "Failed to close response body: %v", err)
		}
	}()

	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, io.Discard, 0, false, nil); err != nil {
		return fmt.Errorf("failed to load image into Docker: %w", err)
	}

	logging.InfoContext(ctx, "Image loaded successfully: %s", imageName)
	return nil
}

// getLocalImageDigest retrieves the digest of a local Docker image using the Docker SDK
func (b *BuildKitBuilder) getLocalImageDigest(ctx context.Context, imageName string) string {
	inspect, err := b.dockerClient.ImageInspect(ctx, imageName)
	if err != nil {
		logging.WarnContext(ctx, "Failed to inspect image %s: %v", imageName, err)
		return ""
	}

	if d := repoDigest(inspect.RepoDigests, ""); d != "" {
		return d
	}

	return inspect.ID
}

// Push tags imageRef as prefix+imageRef and pushes it with the Docker SDK.
func (b *BuildKitBuilder) Push(ctx context.Context, imageRef, prefix string) (string, error) {
	return b.pusher().Push(ctx, imageRef, prefix)
}

// Tag creates an additional tag for an existing image using the Docker SDK.
func (b *BuildKitBuilder) Tag(ctx context.Context, imageRef, newTag string) error {
	return b.pusher().Tag(ctx, imageRef, newTag)
}

// pusher shares the builder's Docker connection; closing stays with the builder.
func (b *BuildKitBuilder) pusher() *DockerPusher {
	return &DockerPusher{docker: b.dockerClient}
}

// Close releases resources and closes connections to BuildKit and Docker daemons.
func (b *BuildKitBuilder) Close() error {
	var errs []error

	if b.client != nil {
		if err := b.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close BuildKit client: %w", err))
		}
	}

	if b.dockerClient != nil {
		if err := b.dockerClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Docker client: %w", err))
		}
	}

	return stderrors.Join(errs...)
}
