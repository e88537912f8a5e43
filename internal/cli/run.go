package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jooh/expcontrol/internal/config"
	"github.com/jooh/expcontrol/internal/device"
	"github.com/jooh/expcontrol/internal/engine"
	"github.com/jooh/expcontrol/internal/ir"
	"github.com/jooh/expcontrol/internal/session"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	// Overrides maps EXPCTL_* variables to flag values. Only flags set on
	// the command line end up here.
	Overrides map[string]string

	// Environ supplies the base environment (default os.Environ).
	Environ func() []string

	// SessionOptions are appended to the runner defaults (for testing).
	SessionOptions []session.Option
}

// RunSummary is the output of a completed session.
type RunSummary struct {
	Session   string `json:"session"`
	Subject   string `json:"subject"`
	Context   string `json:"context"`
	Events    int    `json:"events"`
	Responses int    `json:"responses"`
	Correct   int    `json:"correct"`
	DB        string `json:"db"`
}

// runFlags maps each run flag to the variable it overrides.
var runFlags = []struct {
	name, env, usage string
}{
	{"subject", "EXPCTL_SUBJECT", "subject identifier"},
	{"context", "EXPCTL_CONTEXT", "context label the session is stored under"},
	{"design", "EXPCTL_DESIGN", "CUE design directory"},
	{"db", "EXPCTL_DB", "path to SQLite database"},
	{"order", "EXPCTL_ORDER", "comma-separated condition order"},
	{"timing", "EXPCTL_TIMING", "top level timing (abs|rel)"},
	{"frame-rate", "EXPCTL_FRAME_RATE", "display refresh rate in Hz"},
	{"pulse-key", "EXPCTL_PULSE_KEY", "scanner trigger key (enables the pulse clock)"},
	{"pulse-period", "EXPCTL_PULSE_PERIOD", "nominal pulse period in seconds"},
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts, Overrides: map[string]string{}}
	var emulate bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one experiment session",
		Long: `Run one experiment session and append its logs to the database.

Configuration comes from EXPCTL_* environment variables. Flags override
the matching variable.

Key presses are read from standard input, one key name per line. Enter the
abort key (default "escape") to stop the session without storing it.

Example:
  EXPCTL_SUBJECT=s01 EXPCTL_CONTEXT=run1 expcontrol run --design ./localiser
  expcontrol run --subject s01 --context run1 --pulse-key 5 --pulse-period 2`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range runFlags {
				if cmd.Flags().Changed(f.name) {
					v, _ := cmd.Flags().GetString(f.name)
					opts.Overrides[f.env] = v
				}
			}
			if cmd.Flags().Changed("emulate-pulses") {
				opts.Overrides["EXPCTL_PULSE_EMULATE"] = strconv.FormatBool(emulate)
			}
			return runSession(opts, cmd)
		},
	}

	for _, f := range runFlags {
		cmd.Flags().String(f.name, "", f.usage)
	}
	cmd.Flags().BoolVar(&emulate, "emulate-pulses", false, "generate scanner pulses in-process")

	return cmd
}

func runSession(opts *RunOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	environ := opts.Environ
	if environ == nil {
		environ = os.Environ
	}
	env := environMap(environ())
	for k, v := range opts.Overrides {
		env[k] = v
	}
	if opts.Verbose {
		env["EXPCTL_VERBOSE"] = "true"
	}

	cfg, err := config.LoadFrom(env)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	formatter.VerboseLog("design %s, database %s", cfg.Design, cfg.DB)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	keys := cmd.InOrStdin()
	runner := session.New(append([]session.Option{
		session.WithLogger(session.NewLogger(cfg.Verbose)),
		session.WithKeyboardHook(func(kb *device.Keyboard) {
			go func() { _ = device.FeedLines(ctx, keys, kb) }()
		}),
	}, opts.SessionOptions...)...)

	res, err := runner.Run(ctx, cfg)
	switch {
	case err == nil:
	case ir.IsUserAbort(err):
		_ = formatter.Error(ErrCodeGeneric, "session aborted", err.Error())
		return WrapExitError(ExitFailure, "session aborted", err)
	case ir.IsConfigurationError(err):
		_ = formatter.Error(ErrCodeDesign, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid design", err)
	case res != nil:
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "session not stored", err)
	default:
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "session failed", err)
	}

	summary := summarize(res, cfg.DB)
	text := fmt.Sprintf("Session %s stored in %s: %d events, %d responses (%d correct)\n",
		summary.Session, summary.DB, summary.Events, summary.Responses, summary.Correct)
	return formatter.Success(summary, text)
}

func summarize(res *engine.Result, db string) RunSummary {
	s := RunSummary{
		Session:   res.Session,
		Subject:   res.Subject,
		Context:   res.Context,
		Events:    len(res.Events),
		Responses: len(res.Responses),
		DB:        db,
	}
	for _, score := range res.Responses.Scores() {
		if score == 1 {
			s.Correct++
		}
	}
	return s
}

func environMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
