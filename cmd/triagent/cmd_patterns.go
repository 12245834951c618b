package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"triagent/internal/patterns"
)

var (
	patternType          string
	patternActiveOnly    bool
	patternMinConfidence float64

	recordEvent    string
	recordFollowUp string
	recordDelay    float64
	recordKeywords []string
	recordNeed     string
	recordScore    float64
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Track and inspect behavioral patterns for this agent",
	Long: `Patterns are promoted from repeated observations: time-based
(recurring actions around a time of day or weekday), event-based
(follow-ups after a trigger event) and context-based (recurring needs
around a keyword set). State lives in the workspace .triagent directory,
isolated per agent.`,
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List detected patterns",
	RunE:  runPatternsList,
}

var patternsRecordTimeCmd = &cobra.Command{
	Use:   "record-time <action>",
	Short: "Record a time-based observation at the current time",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPatternsRecordTime,
}

var patternsRecordEventCmd = &cobra.Command{
	Use:   "record-event",
	Short: "Record an event-based observation",
	RunE:  runPatternsRecordEvent,
}

var patternsRecordContextCmd = &cobra.Command{
	Use:   "record-context",
	Short: "Record a context-based observation",
	RunE:  runPatternsRecordContext,
}

var patternsDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Re-run detection over the full observation history",
	RunE:  runPatternsDetect,
}

var patternsMaintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Archive stale patterns and prune old observations",
	RunE:  runPatternsMaintain,
}

func init() {
	patternsListCmd.Flags().StringVar(&patternType, "type", "", "Filter by type (time-based, event-based, context-based)")
	patternsListCmd.Flags().BoolVar(&patternActiveOnly, "active", false, "Only active patterns")
	patternsListCmd.Flags().Float64Var(&patternMinConfidence, "min-confidence", 0, "Minimum confidence")

	patternsRecordEventCmd.Flags().StringVar(&recordEvent, "event", "", "Trigger event (required)")
	patternsRecordEventCmd.Flags().StringVar(&recordFollowUp, "follow-up", "", "Follow-up action (required)")
	patternsRecordEventCmd.Flags().Float64Var(&recordDelay, "delay", 0, "Delay between event and follow-up, in seconds")
	patternsRecordEventCmd.MarkFlagRequired("event")
	patternsRecordEventCmd.MarkFlagRequired("follow-up")

	patternsRecordContextCmd.Flags().StringSliceVar(&recordKeywords, "keyword", nil, "Context keywords (repeatable)")
	patternsRecordContextCmd.Flags().StringVar(&recordNeed, "need", "", "What was needed in this context (required)")
	patternsRecordContextCmd.Flags().Float64Var(&recordScore, "similarity", -1, "Semantic similarity score, when available")
	patternsRecordContextCmd.MarkFlagRequired("need")

	patternsCmd.AddCommand(patternsListCmd)
	patternsCmd.AddCommand(patternsRecordTimeCmd)
	patternsCmd.AddCommand(patternsRecordEventCmd)
	patternsCmd.AddCommand(patternsRecordContextCmd)
	patternsCmd.AddCommand(patternsDetectCmd)
	patternsCmd.AddCommand(patternsMaintainCmd)
}

// withTracker opens the agent's pattern store for one command.
func withTracker(fn func(*patterns.Tracker) error) error {
	cfg, ws, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := patterns.NewStore(patternsDBPath(cfg.StateDir(ws)), cfg.Agent)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(patterns.NewTracker(store, cfg.Patterns))
}

func runPatternsList(cmd *cobra.Command, args []string) error {
	return withTracker(func(tracker *patterns.Tracker) error {
		filter := patterns.QueryFilter{
			Type:          patterns.PatternType(patternType),
			ActiveOnly:    patternActiveOnly,
			MinConfidence: patternMinConfidence,
		}

		found, err := tracker.QueryPatterns(filter)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			fmt.Println("No patterns.")
			return nil
		}
		for _, p := range found {
			state := " "
			if p.Active {
				state = "*"
			}
			fmt.Printf("%s %-14s %.2f  %3d obs  %s\n", state, p.Type, p.Confidence, p.ObservationCount, p.Description)
		}
		return nil
	})
}

func runPatternsRecordTime(cmd *cobra.Command, args []string) error {
	return withTracker(func(tracker *patterns.Tracker) error {
		action := strings.Join(args, " ")
		if err := tracker.RecordTimeObservation(action, time.Now()); err != nil {
			return err
		}
		fmt.Println("Observation recorded.")
		return nil
	})
}

func runPatternsRecordEvent(cmd *cobra.Command, args []string) error {
	return withTracker(func(tracker *patterns.Tracker) error {
		if err := tracker.RecordEventObservation(recordEvent, recordFollowUp, recordDelay, time.Now()); err != nil {
			return err
		}
		fmt.Println("Observation recorded.")
		return nil
	})
}

func runPatternsRecordContext(cmd *cobra.Command, args []string) error {
	return withTracker(func(tracker *patterns.Tracker) error {
		var score *float64
		if recordScore >= 0 {
			score = &recordScore
		}
		if err := tracker.RecordContextObservation(recordKeywords, recordNeed, score, time.Now()); err != nil {
			return err
		}
		fmt.Println("Observation recorded.")
		return nil
	})
}

func runPatternsDetect(cmd *cobra.Command, args []string) error {
	return withTracker(func(tracker *patterns.Tracker) error {
		if err := tracker.Detect(); err != nil {
			return err
		}
		found, err := tracker.QueryPatterns(patterns.QueryFilter{})
		if err != nil {
			return err
		}
		fmt.Printf("Detection complete: %d patterns.\n", len(found))
		return nil
	})
}

func runPatternsMaintain(cmd *cobra.Command, args []string) error {
	return withTracker(func(tracker *patterns.Tracker) error {
		if err := tracker.Maintain(); err != nil {
			return err
		}
		fmt.Println("Maintenance complete.")
		return nil
	})
}
