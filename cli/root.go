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

// Package cli implements the command line of the ml-workspace build entry
// points. Both binaries share the same command and differ only in their
// workspace.Entrypoint.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/khulnasoft/ml-workspace-build/builder"
	"github.com/khulnasoft/ml-workspace-build/builder/buildkit"
	"github.com/khulnasoft/ml-workspace-build/config"
	"github.com/khulnasoft/ml-workspace-build/container"
	"github.com/khulnasoft/ml-workspace-build/logging"
	"github.com/khulnasoft/ml-workspace-build/workspace"
)

// Context key type for storing config
type configKeyType struct{}

// configKey is the context key for storing the config
var configKey = configKeyType{}

// flagBindings maps config keys to the flags that override them.
var flagBindings = map[string]string{
	"log.level":           "log-level",
	"log.format":          "log-format",
	"registry.prefix":     "docker-image-prefix",
	"release.concurrency": "push-concurrency",
	"build.no_cache":      "no-cache",
	"buildkit.endpoint":   "buildkit-endpoint",
}

// Dependencies are the collaborators a run is wired with.
type Dependencies struct {
	// NewBuilder returns the image builder factory for cfg.
	NewBuilder func(cfg *config.Config) builder.BuilderCreatorFunc
	// NewPusher returns the image pusher factory used by releases.
	NewPusher func(cfg *config.Config) builder.PusherCreatorFunc
	// NewRuntime connects to the container runtime used by smoke tests.
	// The returned function releases it.
	NewRuntime func(ctx context.Context) (container.Runtime, func() error, error)
	// Fs holds the version files and the report.
	Fs afero.Fs
	// Now is the run clock.
	Now func() time.Time
}

// DefaultDependencies wires BuildKit for builds, the Docker Engine for pushes
// and test containers, and the OS filesystem.
func DefaultDependencies() Dependencies {
	return Dependencies{
		NewBuilder: func(cfg *config.Config) builder.BuilderCreatorFunc {
			return func(ctx context.Context) (builder.ImageBuilder, error) {
				return buildkit.NewBuildKitBuilder(ctx, cfg)
			}
		},
		NewPusher: func(*config.Config) builder.PusherCreatorFunc {
			return func(ctx context.Context) (builder.ImagePusher, error) {
				return buildkit.NewDockerPusher(ctx)
			}
		},
		NewRuntime: func(context.Context) (container.Runtime, func() error, error) {
			rt, err := container.NewDockerRuntime()
			if err != nil {
				return nil, nil, err
			}
			return rt, rt.Close, nil
		},
		Fs:  afero.NewOsFs(),
		Now: time.Now,
	}
}

// NewRootCommand returns the command of entry.
func NewRootCommand(entry workspace.Entrypoint, deps Dependencies) *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:   entry.Name,
		Short: fmt.Sprintf("Build, test and release %s images", workspace.ProductName),
		Long: fmt.Sprintf(`%s builds the %s image flavors (%s) in order,
optionally smoke-tests each image in a transient container and, when every
flavor succeeded, bumps the recorded version and pushes the images.`,
			entry.Name, workspace.ProductName, strings.Join(entry.Selectors, ", ")),
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.RegistryPrefix = viperString(cmd, "registry.prefix")
			return runBuild(cmd.Context(), entry, deps, *opts)
		},
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Config file (default is ./ml-workspace-build.yaml or $XDG_CONFIG_HOME/ml-workspace-build/)")
	cmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "", "Log format (text, json, color)")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Quiet mode - only show errors")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose mode - show debug output")

	cmd.Flags().StringVar(&opts.Flavor, "flavor", entry.DefaultSelector,
		fmt.Sprintf("Flavor used for the docker image (%s)", strings.Join(entry.Selectors, "|")))
	cmd.Flags().StringVar(&opts.Version, "version", "", "Version to build (default: next dev patch of the latest release)")
	cmd.Flags().BoolVar(&opts.Test, "test", false, "Run the smoke tests of every built image")
	cmd.Flags().BoolVar(&opts.Release, "release", false, "Bump version files and push the images")
	cmd.Flags().BoolVar(&opts.Make, "make", false, "Build the images")
	cmd.Flags().String("docker-image-prefix", "", "Registry prefix for pushed images (default khulnasoft/)")
	cmd.Flags().StringVar(&opts.ReportFile, "report", "", "Write a YAML run report to this file")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	cmd.Flags().Int("push-concurrency", 0, "Number of images pushed at once")
	cmd.Flags().Bool("no-cache", false, "Do not use the build cache")
	cmd.Flags().String("buildkit-endpoint", "", "BuildKit address (default: auto-detect a buildx builder)")

	return cmd
}

// NewCommand returns the command of entry with a "version" subcommand that
// prints the binary version. --version selects the image version to build.
func NewCommand(entry workspace.Entrypoint, deps Dependencies, version string) *cobra.Command {
	cmd := NewRootCommand(entry, deps)
	cmd.AddCommand(newVersionCommand(entry, version))
	return cmd
}

func newVersionCommand(entry workspace.Entrypoint, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of " + entry.Name,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\ncommit: %s\n", entry.Name, version, buildRevision())
		},
	}
}

// buildRevision returns the VCS revision stamped into the binary.
func buildRevision() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && setting.Value != "" {
				return setting.Value
			}
		}
	}
	return "unknown"
}

// configFromContext retrieves the config from the command context.
// Returns nil if no config is stored in context.
func configFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg
	}
	return nil
}

type viperKeyType struct{}

var viperKey = viperKeyType{}

func viperString(cmd *cobra.Command, key string) string {
	if v, ok := cmd.Context().Value(viperKey).(*viper.Viper); ok {
		return v.GetString(key)
	}
	return ""
}

// initConfig initializes configuration with proper precedence:
// CLI Flags > Environment Variables > Config File > Defaults
func initConfig(cmd *cobra.Command, args []string) error {
	// 1. Load config (handles defaults, env vars, and config file)
	cfgFile, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFromPath(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		cfg, err = config.Load()
		if err != nil {
			logging.Warn("failed to load config, using defaults: %v", err)
			cfg = config.Default()
		}
	}

	// 2. Create a new Viper instance for flag binding, seeded with the loaded config
	v := viper.New()
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("registry.prefix", cfg.Registry.Prefix)
	v.SetDefault("release.concurrency", cfg.Release.Concurrency)
	v.SetDefault("build.no_cache", cfg.Build.NoCache)
	v.SetDefault("buildkit.endpoint", cfg.BuildKit.Endpoint)

	// 3. Bind environment variables
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind Cobra flags to Viper (this enables: flags > env > config > defaults)
	for key, flagName := range flagBindings {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flagName)); err != nil {
			return fmt.Errorf("failed to bind %s flag: %w", flagName, err)
		}
	}

	// 5. Initialize logging with final values
	quiet, _ := cmd.Flags().GetBool("quiet")
	verbose, _ := cmd.Flags().GetBool("verbose")
	if err := logging.Initialize(v.GetString("log.level"), v.GetString("log.format"), quiet, verbose); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	// 6. Update config with final Viper values
	cfg.Log.Level = v.GetString("log.level")
	cfg.Log.Format = v.GetString("log.format")
	cfg.Registry.Prefix = v.GetString("registry.prefix")
	cfg.Release.Concurrency = v.GetInt("release.concurrency")
	cfg.Build.NoCache = v.GetBool("build.no_cache")
	cfg.BuildKit.Endpoint = v.GetString("buildkit.endpoint")

	// 7. Store config, viper and the initialized logger in context
	ctx := context.WithValue(cmd.Context(), configKey, cfg)
	ctx = context.WithValue(ctx, viperKey, v)
	ctx = logging.WithLogger(ctx, logging.Default())
	cmd.SetContext(ctx)

	return nil
}

// Execute runs the command of entry until it finishes or the process is
// interrupted. Errors are logged before they are returned.
func Execute(entry workspace.Entrypoint, version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewCommand(entry, DefaultDependencies(), version)
	if err := cmd.ExecuteContext(ctx); err != nil {
		logging.Error(err)
		return err
	}
	return nil
}
