package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"triagent/internal/experiments"
)

var (
	expDimension  string
	expName       string
	expVariants   []string
	expAllocation float64
	expActiveOnly bool
	expPositive   bool
	expNegative   bool
)

var experimentsCmd = &cobra.Command{
	Use:     "experiments",
	Aliases: []string{"ab"},
	Short:   "Manage A/B experiments over solver strategy",
	Long: `Experiments split runs between instruction variants by a
deterministic session hash. Feedback accumulates per variant until a
winner is statistically separable, at which point it can be graduated
into the default strategy.`,
}

var experimentsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an experiment",
	Long: `Creates an experiment from two or more variants. Each --variant
is "name=instruction"; the instruction is what enrolled runs receive.

Example:
  triagent experiments create --dimension tone --name formality \
    --variant "formal=Use formal, precise language." \
    --variant "casual=Use relaxed, conversational language."`,
	RunE: runExperimentsCreate,
}

var experimentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List experiments",
	RunE:  runExperimentsList,
}

var experimentsAssignCmd = &cobra.Command{
	Use:   "assign <experiment-id> <session-key>",
	Short: "Show and record the variant a session is assigned",
	Args:  cobra.ExactArgs(2),
	RunE:  runExperimentsAssign,
}

var experimentsFeedbackCmd = &cobra.Command{
	Use:   "feedback <experiment-id> <variant-id>",
	Short: "Record positive or negative feedback for a variant",
	Args:  cobra.ExactArgs(2),
	RunE:  runExperimentsFeedback,
}

var experimentsResultsCmd = &cobra.Command{
	Use:   "results <experiment-id>",
	Short: "Show per-variant metrics and the winner, if separable",
	Args:  cobra.ExactArgs(1),
	RunE:  runExperimentsResults,
}

var experimentsGraduateCmd = &cobra.Command{
	Use:   "graduate <experiment-id>",
	Short: "Deactivate the experiment and promote its winning variant",
	Args:  cobra.ExactArgs(1),
	RunE:  runExperimentsGraduate,
}

func init() {
	experimentsCreateCmd.Flags().StringVar(&expDimension, "dimension", "", "Dimension being varied (required)")
	experimentsCreateCmd.Flags().StringVar(&expName, "name", "", "Experiment name (required)")
	experimentsCreateCmd.Flags().StringArrayVar(&expVariants, "variant", nil, "Variant as name=instruction (at least two)")
	experimentsCreateCmd.Flags().Float64Var(&expAllocation, "allocation", 1.0, "Fraction of sessions enrolled, in (0,1]")
	experimentsCreateCmd.MarkFlagRequired("dimension")
	experimentsCreateCmd.MarkFlagRequired("name")

	experimentsListCmd.Flags().BoolVar(&expActiveOnly, "active", false, "Only active experiments")

	experimentsFeedbackCmd.Flags().BoolVar(&expPositive, "positive", false, "Record positive feedback")
	experimentsFeedbackCmd.Flags().BoolVar(&expNegative, "negative", false, "Record negative feedback")

	experimentsCmd.AddCommand(experimentsCreateCmd)
	experimentsCmd.AddCommand(experimentsListCmd)
	experimentsCmd.AddCommand(experimentsAssignCmd)
	experimentsCmd.AddCommand(experimentsFeedbackCmd)
	experimentsCmd.AddCommand(experimentsResultsCmd)
	experimentsCmd.AddCommand(experimentsGraduateCmd)
}

func openEngine() (*experiments.Engine, error) {
	cfg, ws, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return experiments.NewEngine(cfg.StateDir(ws), cfg.Agent), nil
}

func runExperimentsCreate(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}

	variants := make([]experiments.Variant, 0, len(expVariants))
	for _, spec := range expVariants {
		name, instruction, ok := strings.Cut(spec, "=")
		if !ok || name == "" {
			return fmt.Errorf("variant %q is not name=instruction", spec)
		}
		variants = append(variants, experiments.Variant{Name: name, Instruction: instruction})
	}

	exp, err := engine.CreateExperiment(expDimension, expName, variants, expAllocation)
	if err != nil {
		return err
	}
	fmt.Printf("Created experiment %s (%s/%s) with %d variants.\n", exp.ID, exp.Dimension, exp.Name, len(exp.Variants))
	return nil
}

func runExperimentsList(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}

	exps := engine.ListExperiments(expActiveOnly)
	if len(exps) == 0 {
		fmt.Println("No experiments.")
		return nil
	}
	for _, exp := range exps {
		state := "inactive"
		if exp.Active {
			state = "active"
		}
		fmt.Printf("%s  %-10s %s/%s  %d variants  allocation %.2f\n",
			exp.ID, state, exp.Dimension, exp.Name, len(exp.Variants), exp.TrafficAllocation)
	}
	return nil
}

func runExperimentsAssign(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}

	exp := engine.GetExperiment(args[0])
	if exp == nil {
		return fmt.Errorf("unknown experiment %q", args[0])
	}

	variant := experiments.AssignVariant(exp, args[1])
	if variant == nil {
		fmt.Println("Session is outside the traffic allocation; not enrolled.")
		return nil
	}
	if err := engine.RecordAssignment(exp.ID, args[1], variant.ID); err != nil {
		return err
	}
	fmt.Printf("%s -> %s (%s)\n", args[1], variant.Name, variant.ID)
	return nil
}

func runExperimentsFeedback(cmd *cobra.Command, args []string) error {
	if expPositive == expNegative {
		return fmt.Errorf("exactly one of --positive or --negative is required")
	}

	engine, err := openEngine()
	if err != nil {
		return err
	}
	if err := engine.RecordVariantFeedback(args[0], args[1], expPositive); err != nil {
		return err
	}
	fmt.Println("Feedback recorded.")
	return nil
}

func runExperimentsResults(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}

	results, err := engine.CalculateExperimentResults(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Experiment %s: %d samples\n", results.ExperimentID, results.TotalSamples)
	for _, vm := range results.Variants {
		fmt.Printf("  %-12s %4d exposures  %3d+/%3d-  success %.2f  confidence %.2f\n",
			vm.VariantID, vm.Exposures, vm.PositiveCount, vm.NegativeCount, vm.SuccessRate, vm.Confidence)
	}
	if results.WinningVariant != "" {
		fmt.Printf("Winner: %s\n", results.WinningVariant)
	} else {
		fmt.Println("No statistically separable winner yet.")
	}
	return nil
}

func runExperimentsGraduate(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}

	variant, err := engine.GraduateWinningVariant(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Graduated %s (%s); experiment deactivated.\n", variant.Name, variant.ID)
	fmt.Printf("Default instruction: %s\n", variant.Instruction)
	return nil
}
