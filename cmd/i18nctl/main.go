// Command i18nctl drives translation jobs against the hotel backend from
// the command line, without running the HTTP service.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/olegiv/survey-i18n/internal/backend"
	"github.com/olegiv/survey-i18n/internal/config"
	"github.com/olegiv/survey-i18n/internal/i18n"
	"github.com/olegiv/survey-i18n/internal/model"
	"github.com/olegiv/survey-i18n/internal/translation"
	"github.com/olegiv/survey-i18n/internal/version"
)

var verbose bool

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "i18nctl",
		Short: "Start and inspect survey and coupon translations",
		Long: `i18nctl starts translation jobs for surveys and coupons and reports
per-language status. It reads the same SURVEY_I18N_* environment as the
service, including a .env file in the working directory.

Commands:
  start       Start a translation job, optionally waiting for it
  status      Reconcile outstanding jobs and show per-language status
  content     Show entity content in one language
  languages   List supported languages`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	root.AddCommand(
		newStartCmd(),
		newStatusCmd(),
		newContentCmd(),
		newLanguagesCmd(),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// session holds the collaborators built from the environment.
type session struct {
	cfg      *config.Config
	registry *i18n.Registry
	manager  *translation.Manager
	logger   *slog.Logger
}

func newSession() (*session, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	client, err := backend.New(cfg.BackendConfig(), backend.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("initializing backend client: %w", err)
	}
	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	manager, err := translation.NewManager(client, client, translation.Options{
		Registry:     registry,
		Policy:       policy,
		Provider:     cfg.Provider,
		RefreshedTTL: cfg.RefreshedTTL,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, registry: registry, manager: manager, logger: logger}, nil
}

func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.manager.Close(ctx)
}

func parseRef(args []string) (model.EntityRef, error) {
	ref := model.EntityRef{Type: args[0], ID: args[1]}
	if err := ref.Validate(); err != nil {
		return model.EntityRef{}, err
	}
	return ref, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// ---------------------------------------------------------------------------
// start
// ---------------------------------------------------------------------------

func newStartCmd() *cobra.Command {
	var (
		source  string
		targets string
		wait    bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "start <survey|coupon> <id>",
		Short: "Start a translation job",
		Long: `Create a backend translation job for the entity. Target languages
that already have a job in flight are skipped.

With --wait the command tracks the job until it completes, fails or hits
the polling deadline, printing each event, then prints the final status.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args)
			if err != nil {
				return err
			}
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.close()

			if source == "" {
				source = s.cfg.DefaultSourceLanguage
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			out := cmd.OutOrStdout()
			if wait {
				unsubscribe := s.manager.Subscribe(func(ev model.TranslationEvent) {
					if ev.Entity == ref {
						printEvent(out, ev)
					}
				})
				defer unsubscribe()
			}

			job, err := s.manager.StartTranslation(ctx, ref,
				model.LanguageCode(source),
				model.LanguageCodes(splitList(targets)...))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "job %s queued for %s\n", job.ID, joinCodes(job.TargetLanguages))

			if !wait {
				return nil
			}
			o, err := s.manager.Orchestrator(ref)
			if err != nil {
				return err
			}
			wctx, wcancel := context.WithTimeout(ctx, timeout)
			defer wcancel()
			if err := o.Wait(wctx); err != nil {
				return fmt.Errorf("waiting for job %s: %w", job.ID, err)
			}
			return printStatus(out, o.StatusView())
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Source language (default: SURVEY_I18N_DEFAULT_SOURCE_LANGUAGE)")
	cmd.Flags().StringVar(&targets, "targets", "", "Target languages (comma-separated, required)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the job to finish")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Maximum time to wait (with --wait)")
	_ = cmd.MarkFlagRequired("targets")
	return cmd
}

// ---------------------------------------------------------------------------
// status
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "status <survey|coupon> <id>",
		Aliases: []string{"reconcile"},
		Short:   "Show per-language translation status",
		Long: `Load the entity, resume tracking of any jobs still outstanding on the
backend and print the per-language status. Pollers are not waited for.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args)
			if err != nil {
				return err
			}
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			if err := s.manager.ReconcileOnLoad(ctx, ref); err != nil {
				return err
			}
			view, err := s.manager.StatusView(ref)
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), view)
		},
	}
}

// ---------------------------------------------------------------------------
// content
// ---------------------------------------------------------------------------

func newContentCmd() *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "content <survey|coupon> <id>",
		Short: "Show entity content in one language",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args)
			if err != nil {
				return err
			}
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.close()

			code := model.LanguageCode(lang)
			if lang != "" {
				normalized, ok := s.registry.Normalize(lang)
				if !ok {
					return fmt.Errorf("unsupported language %q", lang)
				}
				code = normalized
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			fields, _, err := s.manager.DisplayContent(ctx, ref, code)
			if err != nil {
				return err
			}
			return printFields(cmd.OutOrStdout(), fields)
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "Display language (default: original language)")
	return cmd
}

// ---------------------------------------------------------------------------
// languages
// ---------------------------------------------------------------------------

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			registry, err := cfg.Registry()
			if err != nil {
				return err
			}
			return printLanguages(cmd.OutOrStdout(), registry.Languages())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "i18nctl %s\n", version.Get())
		},
	}
}

// ---------------------------------------------------------------------------
// output
// ---------------------------------------------------------------------------

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func joinCodes(codes []model.LanguageCode) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

func printEvent(w io.Writer, ev model.TranslationEvent) {
	line := fmt.Sprintf("%s  %-22s", ev.Timestamp.Format(time.TimeOnly), ev.Type)
	if len(ev.Languages) > 0 {
		line += "  " + joinCodes(ev.Languages)
	}
	if ev.Message != "" {
		line += "  " + ev.Message
	}
	_, _ = fmt.Fprintln(w, line)
}

func printStatus(w io.Writer, view translation.StatusView) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ENTITY\t%s\n", view.Entity)
	_, _ = fmt.Fprintf(tw, "ORIGINAL\t%s\n\n", view.OriginalLanguage)
	_, _ = fmt.Fprintln(tw, "LANGUAGE\tSTATUS\tERROR")

	langs := make([]model.LanguageCode, 0, len(view.Statuses))
	for lang := range view.Statuses {
		langs = append(langs, lang)
	}
	slices.Sort(langs)
	for _, lang := range langs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", lang, view.Statuses[lang], view.Errors[lang])
	}

	if len(view.Jobs) > 0 {
		_, _ = fmt.Fprintln(tw, "\nJOB\tPOLLER\tATTEMPTS")
		for _, j := range view.Jobs {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\n", j.JobID, j.Status, j.Attempts)
		}
	}
	return tw.Flush()
}

func printFields(w io.Writer, f model.Fields) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "title\t%s\n", f.Title)
	_, _ = fmt.Fprintf(tw, "description\t%s\n", f.Description)
	if f.TermsAndConditions != "" {
		_, _ = fmt.Fprintf(tw, "terms\t%s\n", f.TermsAndConditions)
	}
	_, _ = fmt.Fprintf(tw, "questions\t%d\n", len(f.Questions))
	return tw.Flush()
}

func printLanguages(w io.Writer, langs []model.Language) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CODE\tNAME\tNATIVE")
	for _, l := range langs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Code, l.Name, l.NativeName)
	}
	return tw.Flush()
}
