package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jooh/expcontrol/internal/ir"
	"github.com/jooh/expcontrol/internal/store"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Database string
	Context  string
	Session  string // optional, defaults to every session under Context
}

// LogEvent is one stored event in the output.
type LogEvent struct {
	Session   string   `json:"session"`
	Phase     string   `json:"phase"`
	Time      float64  `json:"time"`
	Name      string   `json:"name"`
	Condition string   `json:"condition,omitempty"`
	OnCall    *float64 `json:"on_call"`
	OnFrame   *float64 `json:"on_frame"`
	OnEnd     *float64 `json:"on_end"`
}

// LogResponse is one stored response in the output.
type LogResponse struct {
	Session string   `json:"session"`
	Phase   string   `json:"phase"`
	Time    float64  `json:"time"`
	Key     string   `json:"key"`
	Score   *float64 `json:"score"`
	RT      *float64 `json:"rt"`
}

// LogResult holds the stored logs of a context.
type LogResult struct {
	Context   string        `json:"context"`
	Sessions  []string      `json:"sessions"`
	Events    []LogEvent    `json:"events"`
	Responses []LogResponse `json:"responses"`
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print the stored logs of a context",
		Long: `Print the events and responses stored under a context label, in
append order. Missing values (NaN in the engine) print as null in JSON.

Examples:
  expcontrol log --db ./expcontrol.db --context run1
  expcontrol log --db ./expcontrol.db --context run1 --session 0192... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Context, "context", "", "context label (required)")
	_ = cmd.MarkFlagRequired("context")
	cmd.Flags().StringVar(&opts.Session, "session", "", "only print this session")

	return cmd
}

func runLog(opts *LogOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	result, err := readLogs(ctx, st, opts.Context, opts.Session)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read logs", err)
	}
	return formatter.Success(result, formatLogText(result))
}

func readLogs(ctx context.Context, st *store.Store, label, session string) (LogResult, error) {
	result := LogResult{
		Context:   label,
		Sessions:  []string{},
		Events:    []LogEvent{},
		Responses: []LogResponse{},
	}

	sessions, err := st.Sessions(ctx, label)
	if err != nil {
		return result, err
	}
	for _, s := range sessions {
		if session == "" || s.Session == session {
			result.Sessions = append(result.Sessions, s.Session)
		}
	}

	events, err := st.Events(ctx, label)
	if err != nil {
		return result, err
	}
	for _, row := range events {
		if session != "" && row.Session != session {
			continue
		}
		result.Events = append(result.Events, LogEvent{
			Session:   row.Session,
			Phase:     string(row.Phase),
			Time:      row.Time,
			Name:      row.Name,
			Condition: row.Condition,
			OnCall:    optional(row.OnCall),
			OnFrame:   optional(row.OnFrame),
			OnEnd:     optional(row.OnEnd),
		})
	}

	responses, err := st.Responses(ctx, label)
	if err != nil {
		return result, err
	}
	for _, row := range responses {
		if session != "" && row.Session != session {
			continue
		}
		result.Responses = append(result.Responses, LogResponse{
			Session: row.Session,
			Phase:   string(row.Phase),
			Time:    row.Time,
			Key:     row.Key,
			Score:   optional(row.Score),
			RT:      optional(row.RT),
		})
	}
	return result, nil
}

// optional maps NaN to nil so JSON encoding (which rejects NaN) prints null.
func optional(v float64) *float64 {
	if ir.IsNull(v) {
		return nil
	}
	return &v
}

func formatLogText(r LogResult) string {
	if len(r.Sessions) == 0 {
		return fmt.Sprintf("No sessions found for context: %s\n", r.Context)
	}
	var buf strings.Builder
	fmt.Fprintf(&buf, "Context %s: %d session(s)\n", r.Context, len(r.Sessions))
	fmt.Fprintf(&buf, "\nEvents (%d):\n", len(r.Events))
	for _, e := range r.Events {
		cond := e.Condition
		if cond == "" {
			cond = "-"
		}
		fmt.Fprintf(&buf, "  %8.3f  %-4s  %-10s %s\n", e.Time, e.Phase, cond, e.Name)
	}
	fmt.Fprintf(&buf, "\nResponses (%d):\n", len(r.Responses))
	for _, resp := range r.Responses {
		fmt.Fprintf(&buf, "  %8.3f  %-4s  %-10s score=%s rt=%s\n",
			resp.Time, resp.Phase, resp.Key, formatOptional(resp.Score), formatOptional(resp.RT))
	}
	return buf.String()
}

func formatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *v)
}
