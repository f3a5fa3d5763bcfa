/*
main.go - bonusctl, offline allocation tooling

PURPOSE:
  Runs the allocation engine over scenario files without a server or a
  database, and validates rule documents before they are posted.

COMMANDS:
  allocate       Run a scenario (pool, rule, employees) and print the result
  validate-rule  Parse and validate a rule document (JSON or YAML)
  preset         Print a ready-made rule document

CONFIGURATION:
  Every flag can also be set from the environment with the BONUS_ prefix,
  e.g. BONUS_WORKERS=8 or BONUS_JSON=true.

EXAMPLES:
  bonusctl allocate --file scenario.yaml
  bonusctl allocate --file scenario.yaml --json --workers 4
  bonusctl validate-rule --file rule.json
  bonusctl preset --kind tiered --id fy25 > rule.json

SEE ALSO:
  - factory/scenario.go: Scenario document
  - allocation/engine.go: The pipeline
*/
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "bonusctl",
	Short: "Bonus pool allocation tooling",
	Long: `bonusctl runs the bonus allocation engine over local scenario files.
A scenario holds a pool (budget and reserve), an allocation rule and the
scored employees of the period. Nothing is stored.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("BONUS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Bool("verbose", false, "log engine progress to stderr")
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func registerCommands() {
	rootCmd.AddCommand(allocateCmd())
	rootCmd.AddCommand(validateRuleCmd())
	rootCmd.AddCommand(presetCmd())
}

func allocateCmd() *cobra.Command {
	var file, runID string
	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Run a scenario file through the engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			logger, err := newLogger(viper.GetBool("verbose"))
			if err != nil {
				return err
			}
			defer logger.Sync()

			return runAllocate(cmd.Context(), cmd.OutOrStdout(), data, allocateOptions{
				RunID:   runID,
				Workers: viper.GetInt("workers"),
				JSON:    viper.GetBool("json"),
				Logger:  logger,
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "scenario file (YAML or JSON)")
	cmd.Flags().StringVar(&runID, "run-id", "", "run id (default: random uuid)")
	cmd.Flags().Int("workers", 0, "coefficient workers (0 = GOMAXPROCS)")
	_ = viper.BindPFlag("workers", cmd.Flags().Lookup("workers"))
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func validateRuleCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate-rule",
		Short: "Parse and validate a rule document",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			return runValidateRule(cmd.OutOrStdout(), file, data, viper.GetBool("json"))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "rule file (.json, .yaml or .yml)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func presetCmd() *cobra.Command {
	var kind, id, name string
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "Print a ready-made rule document",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := presetRule(kind, id, name)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), doc)
			return err
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "standard", "standard, performance, tiered or flat")
	cmd.Flags().StringVar(&id, "id", "annual", "rule id")
	cmd.Flags().StringVar(&name, "name", "", "rule name (default: derived from kind)")
	return cmd
}
