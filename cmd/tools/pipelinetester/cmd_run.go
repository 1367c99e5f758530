package main

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-companion/backend/internal/analysis/pipeline"
	"github.com/zhouzirui/z-companion/backend/internal/model/scene"
)

var (
	scenePath string
	repeat    int
	seed      uint64
)

// runCmd processes utterances through one session
var runCmd = &cobra.Command{
	Use:   "run [text...]",
	Short: "Process utterances in a single session and print each outcome",
	Long: `Each argument is one turn. All turns share one session, so emotion and
command history carry over between them. --repeat runs the whole list several
times, which is handy for checking the repetition gate.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTurns,
}

func init() {
	runCmd.Flags().StringVar(&scenePath, "scene", "", "JSON scene snapshot applied to every turn")
	runCmd.Flags().IntVar(&repeat, "repeat", 1, "Number of times to replay the turns")
	runCmd.Flags().Uint64Var(&seed, "seed", 0, "Random seed for tie-breaks and templates (0: random)")
}

func runTurns(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	rules, err := loadRules(logger)
	if err != nil {
		return err
	}

	var snap *scene.Snapshot
	if scenePath != "" {
		data, err := os.ReadFile(scenePath)
		if err != nil {
			return fmt.Errorf("read scene: %w", err)
		}
		snap = &scene.Snapshot{}
		if err := json.Unmarshal(data, snap); err != nil {
			return fmt.Errorf("decode scene: %w", err)
		}
	}

	var rng *rand.Rand
	if seed != 0 {
		rng = rand.New(rand.NewPCG(seed, seed))
	}
	p := pipeline.New(rules, newTokenizer(rules, logger), rng, logger)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	for i := 0; i < max(repeat, 1); i++ {
		for _, text := range args {
			out := p.Process(text, snap)
			if err := enc.Encode(struct {
				Text string `json:"text"`
				pipeline.Outcome
			}{Text: text, Outcome: out}); err != nil {
				return fmt.Errorf("encode outcome: %w", err)
			}
		}
	}
	return nil
}
