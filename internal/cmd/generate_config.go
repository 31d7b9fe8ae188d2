package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/3leaps/gorunner/pkg/swaggen"
)

var (
	generateConfigSwagger string
	generateConfigPostman string
	generateConfigOutput  string
)

var generateConfigCmd = &cobra.Command{
	Use:   "generate-config",
	Short: "Emit a skeleton group document from an OpenAPI/Swagger spec or a Postman collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		if (generateConfigSwagger == "") == (generateConfigPostman == "") {
			return fmt.Errorf("exactly one of --swagger or --postman is required")
		}
		if generateConfigOutput == "" {
			return fmt.Errorf("--output is required")
		}

		name := strings.TrimSuffix(baseName(generateConfigOutput), ".yaml")

		var g any
		var err error
		if generateConfigSwagger != "" {
			body, rErr := os.ReadFile(generateConfigSwagger)
			if rErr != nil {
				return fmt.Errorf("read %s: %w", generateConfigSwagger, rErr)
			}
			g, err = swaggen.FromOpenAPI(body, name)
		} else {
			f, oErr := os.Open(generateConfigPostman)
			if oErr != nil {
				return fmt.Errorf("open %s: %w", generateConfigPostman, oErr)
			}
			defer f.Close()
			g, err = swaggen.FromPostman(f, name)
		}
		if err != nil {
			return err
		}

		body, err := yaml.Marshal(g)
		if err != nil {
			return fmt.Errorf("marshal group document: %w", err)
		}
		return os.WriteFile(generateConfigOutput, body, 0o644)
	},
}

func baseName(path string) string {
	idx := strings.LastIndexByte(path, '/')
	return path[idx+1:]
}

func init() {
	generateConfigCmd.Flags().StringVar(&generateConfigSwagger, "swagger", "", "OpenAPI/Swagger spec file to convert")
	generateConfigCmd.Flags().StringVar(&generateConfigPostman, "postman", "", "Postman collection file to convert")
	generateConfigCmd.Flags().StringVar(&generateConfigOutput, "output", "", "output group document path")
}
