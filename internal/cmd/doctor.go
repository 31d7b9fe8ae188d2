package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gorunner/internal/config"
	"github.com/3leaps/gorunner/internal/observability"
	"github.com/3leaps/gorunner/pkg/groupconfig"
)

var doctorDir string

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the environment and the configured group
documents, reporting problems a job run would otherwise hit midway through.

Examples:
  gorunner doctor                 # check environment + docs/
  gorunner doctor -d ./configs    # check a specific configuration root`,
	Run: runDoctor,
}

func init() {
	doctorCmd.Flags().StringVarP(&doctorDir, "dir", "d", "", "configuration root directory (default docs/)")
}

func runDoctor(cmd *cobra.Command, args []string) {
	if err := observability.Init(); err != nil {
		observability.CLILogger.Error("failed to initialize logging", zap.Error(err))
	}

	bannerName := "doctor"
	if identity := GetAppIdentity(); identity != nil && identity.BinaryName != "" {
		bannerName = identity.BinaryName + " doctor"
	}
	observability.CLILogger.Info("=== " + bannerName + " ===")

	allChecks := true
	checkNum := 1
	totalChecks := 4

	goVersion := runtime.Version()
	if goVersion >= "go1.23" {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking Go version... ok %s", checkNum, totalChecks, goVersion),
			zap.String("go_version", goVersion))
	} else {
		observability.CLILogger.Warn(fmt.Sprintf("[%d/%d] Checking Go version... warn %s (recommended: go1.23+)", checkNum, totalChecks, goVersion))
		allChecks = false
	}
	checkNum++

	if _, ok := os.LookupEnv("ENV_ENCRYPTION_KEY"); ok {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking ENV_ENCRYPTION_KEY... ok set", checkNum, totalChecks))
	} else {
		observability.CLILogger.Warn(fmt.Sprintf("[%d/%d] Checking ENV_ENCRYPTION_KEY... warn not set (an ephemeral key will be generated per run)", checkNum, totalChecks))
	}
	checkNum++

	sysconf, err := config.SysconfDir()
	if err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking system config directory... fail", checkNum, totalChecks), zap.Error(err))
		allChecks = false
	} else {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking system config directory... ok %s", checkNum, totalChecks, sysconf))
	}
	checkNum++

	disc := config.Discovery{Dir: doctorDir}
	paths, err := disc.Resolve()
	if err != nil || len(paths) == 0 {
		observability.CLILogger.Warn(fmt.Sprintf("[%d/%d] Checking configuration documents... warn none found", checkNum, totalChecks))
	} else {
		invalid := 0
		for _, p := range paths {
			if _, err := groupconfig.LoadFile(p); err != nil {
				invalid++
				observability.CLILogger.Error("  invalid: "+p, zap.Error(err))
			}
		}
		if invalid == 0 {
			observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking configuration documents... ok %d valid", checkNum, totalChecks, len(paths)))
		} else {
			observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking configuration documents... fail %d/%d invalid", checkNum, totalChecks, invalid, len(paths)))
			allChecks = false
		}
	}

	observability.CLILogger.Info("")
	if allChecks {
		observability.CLILogger.Info(fmt.Sprintf("All checks passed. Your %s installation is healthy.", bannerName))
	} else {
		observability.CLILogger.Warn("Some checks failed. Review the output above for details.")
	}
}
