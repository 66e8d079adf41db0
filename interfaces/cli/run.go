package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/NatureBlueee/Towow-sub004/domain/agent"
	"github.com/NatureBlueee/Towow-sub004/domain/negotiation"
	"github.com/NatureBlueee/Towow-sub004/domain/oracle"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/config"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/encoder"
	"github.com/NatureBlueee/Towow-sub004/infrastructure/logging"
	inforacle "github.com/NatureBlueee/Towow-sub004/infrastructure/oracle"
	"github.com/NatureBlueee/Towow-sub004/interfaces/api"
)

// runOptions holds options for the run command.
type runOptions struct {
	configPath  string
	demand      string
	agents      []string
	timeout     time.Duration
	autoConfirm bool
	verbose     bool
	jsonOutput  bool
	showEvents  bool
}

// newRunCmd creates the run command.
func (a *App) newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [demand]",
		Short: "Run a negotiation for the given demand",
		Long: `Run one negotiation end to end using built-in offer and synthesis
oracles: every registered agent that survives the resonance cascade answers
with an offer, and the synthesis assigns all of them to the proposal.

The demand is formulated, candidates are discovered, offers are collected
behind the barrier, and the resulting proposal is auto-confirmed unless
--auto-confirm=false.

Examples:
  # Run with a demand and an inline agent population
  towow run --agent "translator:translate,french" --agent "designer:design" \
    "translate the brochure to French"

  # Run with a config file
  towow run -c config.yaml --agent "analyst:data,report" "analyze Q3 sales"

  # Show the full event stream as JSON
  towow run --agent "a:x" --events --json "do x"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.demand = args[0]
			return a.runNegotiation(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringArrayVar(&opts.agents, "agent", nil, "Agent as id:cap1,cap2 (repeatable)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Overall negotiation timeout")
	cmd.Flags().BoolVar(&opts.autoConfirm, "auto-confirm", true, "Confirm the proposal automatically")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVar(&opts.showEvents, "events", false, "Print the event stream after the run")

	return cmd
}

// runNegotiation executes one negotiation with the given options.
func (a *App) runNegotiation(ctx context.Context, opts *runOptions) error {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.NewLoader().LoadFile(opts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
	}

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if opts.verbose {
		logging.SetLevel("debug")
	}

	profiles, err := parseAgents(opts.agents)
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		return fmt.Errorf("no agents specified (use --agent id:cap1,cap2)")
	}

	engineOpts := []api.Option{
		api.WithRegistry(api.NewRegistry(profiles...)),
		api.WithOfferOracle(&inforacle.StaticOffer{Content: json.RawMessage(`{"accepted":true}`)}),
		api.WithSynthesis(assignAllSynthesis()),
		api.WithEncoder(encoder.NewHashEncoder(cfg.Cascade.Dimension)),
		api.WithBounds(cfg.Bounds()),
		api.WithCascadePolicy(cfg.CascadePolicy()),
		api.WithRecursionPolicy(cfg.RecursionPolicy()),
	}
	if opts.autoConfirm {
		engineOpts = append(engineOpts, api.WithConfirmationSink(inforacle.AutoConfirm{}))
	}

	storeOpts, closers, err := buildStores(cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage backend: %w", err)
	}
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	engineOpts = append(engineOpts, storeOpts...)

	engine, err := api.New(engineOpts...)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	if opts.verbose {
		_, _ = fmt.Fprintf(a.stdout, "Agents: %d\n", len(profiles))
		_, _ = fmt.Fprintf(a.stdout, "Demand: %s\n\n", opts.demand)
	}

	startTime := time.Now()
	n, err := engine.Run(ctx, api.Demand{RawText: opts.demand})
	duration := time.Since(startTime)
	if err != nil {
		return fmt.Errorf("negotiation run failed: %w", err)
	}

	if opts.jsonOutput {
		return a.printJSON(ctx, engine, n, duration, opts.showEvents)
	}
	return a.printText(ctx, engine, n, duration, opts.showEvents)
}

// printJSON emits the run summary (and optionally the event stream) as JSON.
func (a *App) printJSON(ctx context.Context, engine *api.Engine, n *api.Negotiation, duration time.Duration, showEvents bool) error {
	output := map[string]any{
		"negotiation_id": n.ID,
		"state":          string(n.State),
		"rounds":         n.Round,
		"duration":       duration.String(),
	}
	if p := n.CurrentProposal(); p != nil {
		output["proposal"] = p
	}
	if n.FailReason != "" {
		output["fail_reason"] = n.FailReason
	}
	if showEvents {
		events, err := engine.Events(ctx, n.ID)
		if err != nil {
			return err
		}
		output["events"] = events
	}

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

// printText emits a human-readable run summary.
func (a *App) printText(ctx context.Context, engine *api.Engine, n *api.Negotiation, duration time.Duration, showEvents bool) error {
	_, _ = fmt.Fprintf(a.stdout, "Negotiation finished\n")
	_, _ = fmt.Fprintf(a.stdout, "  ID: %s\n", n.ID)
	_, _ = fmt.Fprintf(a.stdout, "  State: %s\n", n.State)
	_, _ = fmt.Fprintf(a.stdout, "  Rounds: %d\n", n.Round)
	_, _ = fmt.Fprintf(a.stdout, "  Duration: %s\n", duration)

	switch n.State {
	case api.StateCompleted:
		_, _ = fmt.Fprintf(a.stdout, "  Status: COMPLETED\n")
		if p := n.CurrentProposal(); p != nil {
			for _, as := range p.Assignments {
				_, _ = fmt.Fprintf(a.stdout, "    %s -> %s\n", as.AgentID, as.Role)
			}
		}
	case api.StateFailed:
		_, _ = fmt.Fprintf(a.stdout, "  Status: FAILED (%s)\n", n.FailReason)
	}

	if showEvents {
		events, err := engine.Events(ctx, n.ID)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(a.stdout, "\nEvents:\n")
		for _, evt := range events {
			_, _ = fmt.Fprintf(a.stdout, "  %3d %-25s %s\n", evt.Sequence, evt.Type, evt.Timestamp.Format(time.RFC3339))
		}
	}

	return nil
}

// parseAgents converts --agent flags (id:cap1,cap2) into profiles.
func parseAgents(specs []string) ([]agent.Profile, error) {
	profiles := make([]agent.Profile, 0, len(specs))
	for _, spec := range specs {
		id, caps, _ := strings.Cut(spec, ":")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("invalid agent spec %q (want id:cap1,cap2)", spec)
		}
		p := agent.Profile{ID: agent.Ref(id)}
		for _, c := range strings.Split(caps, ",") {
			if c = strings.TrimSpace(c); c != "" {
				p.Capabilities = append(p.Capabilities, c)
			}
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// assignAllSynthesis builds a synthesis oracle that assigns every offering
// agent a contributor role. Rounds with no offers fail the negotiation.
func assignAllSynthesis() oracle.Synthesis {
	return inforacle.SynthesisFunc(func(ctx context.Context, req oracle.SynthesisRequest) (oracle.SynthesisOutcome, error) {
		if len(req.Offers) == 0 {
			return oracle.SynthesisOutcome{
				Decision: oracle.DecisionFailure,
				Reason:   "no offers collected",
			}, nil
		}

		assignments := make([]negotiation.Assignment, 0, len(req.Offers))
		for _, o := range req.Offers {
			assignments = append(assignments, negotiation.Assignment{
				AgentID:      o.AgentID,
				Role:         "contributor",
				Contribution: o.Content,
			})
		}

		return oracle.SynthesisOutcome{
			Decision: oracle.DecisionProposal,
			Proposal: &negotiation.Proposal{
				Assignments: assignments,
				Confidence:  1.0,
			},
		}, nil
	})
}
