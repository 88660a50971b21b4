package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/fluencycoach/internal/analysis"
	"github.com/nikhilbhutani/fluencycoach/internal/app"
	"github.com/nikhilbhutani/fluencycoach/internal/coach"
	"github.com/nikhilbhutani/fluencycoach/internal/config"
	"github.com/nikhilbhutani/fluencycoach/internal/fluency"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "fluencyctl",
		Short:        "Score speech fluency from transcripts or recordings",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("policy", os.Getenv("FLUENCY_POLICY_PATH"), "scoring policy YAML (default: built-in policy)")
	root.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(newAnalyzeCmd(), newPolicyCmd())
	return root
}

type analyzeOpts struct {
	audio    string
	title    string
	classify bool
	indent   bool
}

func newAnalyzeCmd() *cobra.Command {
	var opts analyzeOpts
	cmd := &cobra.Command{
		Use:   "analyze [transcript.json|-]",
		Short: "Print a fluency report as JSON",
		Long: `Analyze scores a transcript file holding {"text", "words", "duration_seconds", "fillers"}.
Use "-" to read the transcript from stdin. With --audio the recording is transcribed
and classified through the configured providers instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, policyPath := persistent(cmd)
			var (
				report *fluency.Report
				err    error
			)
			if opts.audio != "" {
				report, err = analyzeAudio(cmd.Context(), logger, policyPath, opts)
			} else {
				if len(args) == 0 {
					return fmt.Errorf("a transcript file or --audio is required")
				}
				report, err = analyzeTranscript(cmd.Context(), cmd.InOrStdin(), logger, policyPath, args[0], opts)
			}
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), report, opts.indent)
		},
	}
	cmd.Flags().StringVar(&opts.audio, "audio", "", "recording to transcribe and score")
	cmd.Flags().StringVar(&opts.title, "title", "", "challenge title for the relevance check (with --audio)")
	cmd.Flags().BoolVar(&opts.classify, "classify", false, "classify fillers with the configured LLM")
	cmd.Flags().BoolVar(&opts.indent, "pretty", true, "indent JSON output")
	return cmd
}

func newPolicyCmd() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Print the effective scoring policy as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, policyPath := persistent(cmd)
			policy, err := app.LoadPolicy(policyPath)
			if err != nil {
				return err
			}
			if err := policy.Validate(); err != nil {
				return err
			}
			if check {
				fmt.Fprintln(cmd.OutOrStdout(), "policy OK")
				return nil
			}
			doc, err := policy.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(doc)
			return err
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "only validate the policy")
	return cmd
}

func persistent(cmd *cobra.Command) (*slog.Logger, string) {
	level, _ := cmd.Flags().GetString("log-level")
	policyPath, _ := cmd.Flags().GetString("policy")
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: parseLevel(level)}))
	return logger, policyPath
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelWarn
	}
	return lvl
}

func analyzeTranscript(ctx context.Context, stdin io.Reader, logger *slog.Logger, policyPath, path string, opts analyzeOpts) (*fluency.Report, error) {
	var in io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		in = f
	}

	var req analysis.TranscriptRequest
	dec := json.NewDecoder(in)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	req.Classify = req.Classify || opts.classify

	if !req.Classify {
		policy, err := app.LoadPolicy(policyPath)
		if err != nil {
			return nil, err
		}
		engine, err := fluency.New(policy, fluency.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return analysis.NewService(engine, nil, analysis.WithLogger(logger)).AnalyzeTranscript(ctx, req)
	}

	svc, err := services(logger, policyPath)
	if err != nil {
		return nil, err
	}
	return svc.Analysis.AnalyzeTranscript(ctx, req)
}

func analyzeAudio(ctx context.Context, logger *slog.Logger, policyPath string, opts analyzeOpts) (*fluency.Report, error) {
	audio, err := os.ReadFile(opts.audio)
	if err != nil {
		return nil, err
	}
	svc, err := services(logger, policyPath)
	if err != nil {
		return nil, err
	}
	res, err := svc.Analysis.AnalyzeAudio(ctx, analysis.AudioRequest{
		Audio:     audio,
		Filename:  filepath.Base(opts.audio),
		Challenge: coach.Challenge{Title: opts.title},
	})
	if err != nil {
		return nil, err
	}
	return res.Report, nil
}

func services(logger *slog.Logger, policyPath string) (*app.Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.Analysis.PolicyPath = policyPath
	return app.NewServices(cfg, logger)
}

func writeReport(w io.Writer, r *fluency.Report, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(r)
}
