package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/quorumhq/quorum/internal/adapter"
	"github.com/quorumhq/quorum/internal/config"
	"github.com/quorumhq/quorum/internal/control"
	"github.com/quorumhq/quorum/internal/deliberation"
	"github.com/quorumhq/quorum/internal/history"
	"github.com/quorumhq/quorum/internal/registry"
	"github.com/quorumhq/quorum/internal/transcript"
	"github.com/quorumhq/quorum/internal/tui"
	"github.com/quorumhq/quorum/pkg/models"
)

var (
	delibParticipants []string
	delibMode         string
	delibRounds       int
	delibThreshold    float64
	delibEpsilon      float64
	delibMaxTokens    int
	delibTimeout      time.Duration
	delibWatch        bool
	delibNoHistory    bool
	delibTranscripts  string
	delibRunDir       string
)

var deliberateCmd = &cobra.Command{
	Use:   "deliberate <question>",
	Short: "Run a deliberation over a question",
	Long: `Pose a question to a panel of participants and deliberate to a decision.

Each --participant flag describes one panel member as key=value pairs:

  quorum deliberate "Adopt proposal X?" \
    --participant id=claude,kind=anthropic,model=claude-sonnet-4-20250514 \
    --participant id=advocate,kind=anthropic,stance=for,weight=0.5 \
    --participant id=local,kind=http,backend=http://localhost:11434/v1,model=llama3

In multi-round mode (the default) participants see each other's prior
positions and rounds continue until convergence or the round cap. In
single-round mode everyone answers once and votes are tallied directly.

A running deliberation can be stopped early by touching a "cancel" file
in the run directory; the decision is finalized from completed rounds.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeliberate,
}

func init() {
	deliberateCmd.Flags().StringArrayVar(&delibParticipants, "participant", nil, "Participant spec (repeatable): id=...,kind=process|http|anthropic[,backend=...][,model=...][,stance=for|against|neutral][,weight=N]")
	deliberateCmd.Flags().StringVar(&delibMode, "mode", "", "Deliberation mode: single-round or multi-round")
	deliberateCmd.Flags().IntVar(&delibRounds, "rounds", 0, "Maximum number of rounds")
	deliberateCmd.Flags().Float64Var(&delibThreshold, "threshold", 0, "Convergence score that stops further rounds")
	deliberateCmd.Flags().Float64Var(&delibEpsilon, "epsilon", 0, "Vote margin below which the outcome is no-consensus")
	deliberateCmd.Flags().IntVar(&delibMaxTokens, "max-tokens", 0, "Per-response token limit")
	deliberateCmd.Flags().DurationVar(&delibTimeout, "timeout", 0, "Overall deliberation deadline")
	deliberateCmd.Flags().BoolVar(&delibWatch, "watch", false, "Watch the deliberation in a live TUI")
	deliberateCmd.Flags().BoolVar(&delibNoHistory, "no-history", false, "Skip saving the decision to history")
	deliberateCmd.Flags().StringVar(&delibTranscripts, "transcript-dir", "", "Directory for the full round transcript")
	deliberateCmd.Flags().StringVar(&delibRunDir, "run-dir", "", "Run directory watched for a cancel file")

	deliberateCmd.MarkFlagRequired("participant")
}

func runDeliberate(cmd *cobra.Command, args []string) error {
	question := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyDeliberateDefaults(cfg)

	participants := make([]models.Participant, 0, len(delibParticipants))
	adapters := make(map[string]adapter.Adapter, len(delibParticipants))
	for _, spec := range delibParticipants {
		p, err := parseParticipantSpec(spec)
		if err != nil {
			return err
		}
		if p.Weight == 0 {
			if w, ok := cfg.Weights[p.ID]; ok {
				p.Weight = w
			}
		}
		a, err := buildAdapter(p, cfg)
		if err != nil {
			return err
		}
		participants = append(participants, p)
		adapters[p.ID] = a
	}

	reg := registry.Default()
	if cfg.Registry.Path != "" {
		reg, err = registry.Load(cfg.Registry.Path)
		if err != nil {
			return fmt.Errorf("load registry: %w", err)
		}
	}

	var writer transcript.Writer = transcript.Discard{}
	if delibTranscripts != "" {
		writer = transcript.NewFileWriter(delibTranscripts)
	}

	ctrl, err := deliberation.New(deliberation.Config{
		Question:     question,
		Participants: participants,
		Mode:         deliberation.Mode(delibMode),
		MaxRounds:    delibRounds,
		Threshold:    delibThreshold,
		MaxTokens:    delibMaxTokens,
		Epsilon:      delibEpsilon,
	}, adapters,
		deliberation.WithRegistry(reg),
		deliberation.WithTranscriptWriter(writer),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), delibTimeout)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nReceived interrupt, finalizing...")
		cancel()
	}()

	runDir := delibRunDir
	if runDir == "" {
		runDir = filepath.Join(os.TempDir(), "quorum", ctrl.ID())
	}
	ctx, watcher, err := control.Watch(ctx, runDir)
	if err != nil {
		return fmt.Errorf("watch run dir: %w", err)
	}
	defer watcher.Stop()

	record, err := runWithEvents(ctx, ctrl, question)
	if err != nil {
		return err
	}

	if !delibWatch {
		printRecord(record)
	}

	if !delibNoHistory {
		if err := saveToHistory(cfg, record); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not save to history: %v\n", err)
		}
	}
	return nil
}

// applyDeliberateDefaults fills unset flag values from the loaded config.
func applyDeliberateDefaults(cfg *config.Config) {
	if delibMode == "" {
		delibMode = cfg.Deliberation.Mode
	}
	if delibRounds == 0 {
		delibRounds = cfg.Deliberation.MaxRounds
	}
	if delibThreshold == 0 {
		delibThreshold = cfg.Deliberation.Threshold
	}
	if delibEpsilon == 0 {
		delibEpsilon = cfg.Deliberation.Epsilon
	}
	if delibMaxTokens == 0 {
		delibMaxTokens = cfg.Deliberation.MaxTokens
	}
	if delibTimeout == 0 {
		delibTimeout = cfg.Deliberation.Timeout
	}
	if delibTranscripts == "" {
		delibTranscripts = cfg.Transcripts.Dir
	}
}

// runWithEvents executes the deliberation while rendering its event stream,
// either in the watch TUI or as plain console output.
func runWithEvents(ctx context.Context, ctrl *deliberation.Controller, question string) (*models.DecisionRecord, error) {
	type result struct {
		record *models.DecisionRecord
		err    error
	}
	resCh := make(chan result, 1)
	go func() {
		record, err := ctrl.Run(ctx)
		resCh <- result{record, err}
	}()

	if delibWatch {
		p, _ := tui.NewProgram(question)
		go tui.Forward(p, ctrl.Events(), func() (*models.DecisionRecord, error) {
			res := <-resCh
			resCh <- res
			return res.record, res.err
		})
		if _, err := p.Run(); err != nil {
			return nil, fmt.Errorf("watch tui: %w", err)
		}
		res := <-resCh
		return res.record, res.err
	}

	for ev := range ctrl.Events() {
		printEvent(ev)
	}
	res := <-resCh
	return res.record, res.err
}

// printEvent writes one console line per significant event.
func printEvent(ev deliberation.Event) {
	switch ev.Type {
	case deliberation.EventStarted:
		fmt.Printf("%s deliberation %s\n", color.CyanString("*"), ev.DeliberationID)
	case deliberation.EventResponseReceived:
		if ev.Err == "" {
			fmt.Printf("  %s round %d: %s responded\n", color.GreenString("+"), ev.Round, ev.ParticipantID)
		} else {
			fmt.Printf("  %s round %d: %s failed (%s)\n", color.RedString("x"), ev.Round, ev.ParticipantID, ev.Err)
		}
	case deliberation.EventRoundCompleted:
		if ev.ScoreComputed {
			fmt.Printf("%s round %d complete, convergence %.2f\n", color.CyanString("*"), ev.Round, ev.Score)
		} else {
			fmt.Printf("%s round %d complete\n", color.CyanString("*"), ev.Round)
		}
	case deliberation.EventError:
		if ev.ParticipantID == "" {
			fmt.Printf("%s %s\n", color.RedString("!"), ev.Message)
		}
	}
}

// printRecord renders the final decision.
func printRecord(record *models.DecisionRecord) {
	fmt.Println()
	switch record.Outcome {
	case models.OutcomeDecided:
		fmt.Printf("%s Decision: %s (confidence %.2f)\n", color.GreenString("✓"), color.New(color.Bold).Sprint(record.Choice), record.Confidence)
	default:
		fmt.Printf("%s No consensus reached\n", color.YellowString("⚠"))
	}
	fmt.Printf("  id %s, %d rounds, %d votes\n", record.ID, record.Rounds, len(record.Votes))
	for _, v := range record.Votes {
		fmt.Printf("  %s voted %q (confidence %.2f)\n", v.ParticipantID, v.Choice, v.Confidence)
	}
	if record.Incomplete {
		fmt.Printf("  %s\n", color.YellowString("incomplete: deadline expired mid-round"))
	}
}

// saveToHistory persists the decision record.
func saveToHistory(cfg *config.Config, record *models.DecisionRecord) error {
	path := cfg.History.Path
	if path == "" {
		path = history.DefaultPath()
	}
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(record)
}
