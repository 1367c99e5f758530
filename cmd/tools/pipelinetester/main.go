// pipelinetester 在命令行中运行分析流水线，便于调试规则文件。
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-companion/backend/internal/analysis/segment"
	"github.com/zhouzirui/z-companion/backend/internal/model/lexicon"
	applog "github.com/zhouzirui/z-companion/backend/pkg/log"
)

var (
	rulesPath string
	logLevel  string
	useGSE    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "pipelinetester",
	Short: "Run the context, emotion and decision pipeline from the command line",
	Long: `pipelinetester feeds utterances through the same pipeline the API uses
and prints every stage as JSON.

Examples:
  pipelinetester run 过来
  pipelinetester run --scene scene.json --repeat 3 快跑
  pipelinetester rules > rules.yaml`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", os.Getenv("RULES_FILE"), "YAML rules file (default: built-in rules)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level")
	rootCmd.PersistentFlags().BoolVar(&useGSE, "gse", false, "Use the gse dictionary segmenter instead of the rule-word segmenter")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(rulesCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() (*logrus.Logger, error) {
	return applog.New(applog.Config{Level: logLevel})
}

func loadRules(logger logrus.FieldLogger) (*lexicon.Ruleset, error) {
	if rulesPath == "" {
		return lexicon.Default(), nil
	}
	rules, err := lexicon.LoadFile(rulesPath, logger)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return rules, nil
}

func newTokenizer(rules *lexicon.Ruleset, logger logrus.FieldLogger) segment.Tokenizer {
	if useGSE {
		return segment.New(rules, logger)
	}
	return segment.NewLexiconFor(rules)
}
