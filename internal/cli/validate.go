package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and print the effective values",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(cfg.Masked())
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	os.Stdout.Write(out)

	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "configuration OK")
	return nil
}
