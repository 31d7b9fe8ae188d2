// Package cmd assembles the gorunner command-line tree (cobra) and the
// viper-backed defaults the root command and its subcommands read.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/3leaps/gorunner/internal/cliutil"
	"github.com/3leaps/gorunner/internal/config"
	"github.com/3leaps/gorunner/internal/observability"
	"github.com/3leaps/gorunner/internal/orchestrator"
	"github.com/3leaps/gorunner/internal/secret"
	"github.com/3leaps/gorunner/pkg/httpclient"
)

type versionInfoT struct {
	Version   string
	Commit    string
	BuildDate string
}

var versionInfo versionInfoT

// appIdentityT is the minimal identity a subcommand needs to build a
// banner; see doctor.go.
type appIdentityT struct {
	BinaryName string
}

var appIdentity *appIdentityT

// SetVersionInfo is called from cmd/gorunner/main.go with build-time values.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// GetAppIdentity returns the process's identity, or nil before init runs.
func GetAppIdentity() *appIdentityT {
	return appIdentity
}

var (
	flagProduction           bool
	flagTest                 bool
	flagJobID                string
	flagImport               bool
	flagValidateOnly         bool
	flagDir                  string
	flagFile                 string
	flagSilent               bool
	flagPayloadFile          string
	flagParamsFile           string
	flagOutputResponseParams bool
)

var rootCmd = &cobra.Command{
	Use:   "gorunner",
	Short: "Declarative HTTP integration runner",
	Long: `gorunner executes declaratively configured HTTP jobs — logins, requests, and
their dependents — against group documents, with optional file or database
output sinks.`,
	RunE: runRoot,
}

func init() {
	appIdentity = &appIdentityT{BinaryName: "gorunner"}
	setDefaults()

	rootCmd.Flags().BoolVarP(&flagProduction, "production", "p", false, "production mode")
	rootCmd.Flags().BoolVarP(&flagTest, "test", "t", false, "test mode (verbose by default)")
	rootCmd.Flags().StringVarP(&flagJobID, "job", "j", "", "target job id")
	rootCmd.Flags().BoolVarP(&flagImport, "import", "i", false, "validate and copy configuration into the system config directory")
	rootCmd.Flags().BoolVarP(&flagValidateOnly, "validate", "v", false, "validate configuration only, do not run")
	rootCmd.Flags().StringVarP(&flagDir, "dir", "d", "", "configuration root directory (default docs/)")
	rootCmd.Flags().StringVarP(&flagFile, "file", "f", "", "single configuration file")
	rootCmd.Flags().BoolVarP(&flagSilent, "silent", "s", false, "silent mode")
	rootCmd.Flags().StringVar(&flagPayloadFile, "payload-file", "", "override the request body from a file")
	rootCmd.Flags().StringVar(&flagParamsFile, "params-file", "", "override query params from a file")
	rootCmd.Flags().BoolVar(&flagOutputResponseParams, "output-response-params", false, "write response metadata to ./output-response-params.js")

	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(encryptCmd)
	rootCmd.AddCommand(decryptCmd)
	rootCmd.AddCommand(generateConfigCmd)
	rootCmd.AddCommand(listCmd)
}

// setDefaults populates the defaults gorunner reads through viper when no
// flag, env var, or config file overrides them.
func setDefaults() {
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.profile", "structured")
	viper.SetDefault("discovery.dir", "docs")
	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.delay_ms", 1000)
}

// Execute runs the command tree; it is the single call cmd/gorunner/main.go
// makes.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		cliutil.Fail(cliutil.ExitInvalidArgument, "%v", err)
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	if flagProduction && flagTest {
		return fmt.Errorf("-p and -t are mutually exclusive")
	}
	if err := observability.Init(); err != nil {
		return err
	}

	silent := flagSilent && !flagTest

	disc := config.Discovery{File: flagFile, Dir: flagDir}

	if flagValidateOnly {
		groups, err := disc.Load()
		if err != nil {
			cliutil.ExitWithCode(observability.CLILogger, cliutil.ExitConfigInvalid, "configuration invalid", err)
			return nil
		}
		observability.CLILogger.Info(fmt.Sprintf("configuration valid: %d group(s)", len(groups)))
		return nil
	}

	if flagImport {
		written, err := config.Import(disc)
		if err != nil {
			cliutil.ExitWithCode(observability.CLILogger, cliutil.ExitConfigInvalid, "import failed", err)
			return nil
		}
		for _, w := range written {
			observability.CLILogger.Info("imported " + w)
		}
		return nil
	}

	if flagJobID == "" {
		return fmt.Errorf("-j <id> is required")
	}

	masterKey, err := resolveMasterKey()
	if err != nil {
		return err
	}

	report, err := orchestrator.Run(cmd.Context(), orchestrator.Options{
		Discovery:   disc,
		TargetJobID: flagJobID,
		PayloadFile: flagPayloadFile,
		ParamsFile:  flagParamsFile,
		MasterKey:   masterKey,
		Silent:      silent,
	})
	if err != nil {
		cliutil.ExitWithCode(observability.CLILogger, exitCodeFor(err), "job execution failed", err)
		return nil
	}

	if flagOutputResponseParams {
		if err := writeResponseParams(report, flagJobID); err != nil {
			observability.CLILogger.Warn("could not write output-response-params.js: " + err.Error())
		}
	}

	return nil
}

// exitCodeFor classifies an orchestrator.Run failure: a dependency-graph
// resolution error (bad target, cycle, dangling/cross-origin reference)
// exits ExitDependencyError; a transport failure surviving the HTTP
// client's own retries exits ExitExternalServiceUnavailable; anything else
// (auth failure, sink write failure, ...) exits ExitExecutionFailed.
func exitCodeFor(err error) int {
	var depErr *orchestrator.DependencyError
	if errors.As(err, &depErr) {
		return cliutil.ExitDependencyError
	}
	var transportErr *httpclient.TransportError
	if errors.As(err, &transportErr) {
		return cliutil.ExitExternalServiceUnavailable
	}
	return cliutil.ExitExecutionFailed
}

// resolveMasterKey reads ENV_ENCRYPTION_KEY, or generates and reports an
// ephemeral one when absent, per spec.md §6.
func resolveMasterKey() (string, error) {
	if key, ok := os.LookupEnv("ENV_ENCRYPTION_KEY"); ok && key != "" {
		return key, nil
	}
	key, err := secret.GenerateMasterKey()
	if err != nil {
		return "", fmt.Errorf("generate master key: %w", err)
	}
	observability.CLILogger.Warn("ENV_ENCRYPTION_KEY not set; generated an ephemeral key for this run: " + key)
	return key, nil
}
