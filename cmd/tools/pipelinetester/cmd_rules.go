package main

import (
	"github.com/spf13/cobra"
)

// rulesCmd dumps the effective rules
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the effective rules as YAML",
	Long: `Prints the built-in rules, or the --rules file merged over them, in the
same format the rules loader reads.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		rules, err := loadRules(logger)
		if err != nil {
			return err
		}
		return rules.WriteYAML(cmd.OutOrStdout())
	},
}
