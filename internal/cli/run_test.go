package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jooh/expcontrol/internal/device"
	"github.com/jooh/expcontrol/internal/engine"
	"github.com/jooh/expcontrol/internal/session"
	"github.com/jooh/expcontrol/internal/store"
)

func runOptions(t *testing.T, format string, env map[string]string, sessionOpts ...session.Option) (*RunOptions, *cobra.Command, *bytes.Buffer) {
	t.Helper()
	var environ []string
	for k, v := range env {
		environ = append(environ, k+"="+v)
	}
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: format},
		Overrides:   map[string]string{},
		Environ:     func() []string { return environ },
		SessionOptions: append([]session.Option{
			session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
			session.WithExperimentOptions(engine.WithSessionIDs(engine.NewFixedGenerator("cli-session"))),
		}, sessionOpts...),
	}
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetIn(strings.NewReader(""))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	return opts, cmd, &out
}

func TestRunSession_StoresResult(t *testing.T) {
	db := filepath.Join(t.TempDir(), "run.db")
	opts, cmd, out := runOptions(t, "json", map[string]string{
		"EXPCTL_SUBJECT":    "s01",
		"EXPCTL_CONTEXT":    "run1",
		"EXPCTL_DESIGN":     writeDesign(t, quickDesign),
		"EXPCTL_DB":         db,
		"EXPCTL_FRAME_RATE": "200",
	}, session.WithKeyboardHook(func(kb *device.Keyboard) { kb.Press("f") }))

	require.NoError(t, runSession(opts, cmd))

	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "cli-session", resp.Data.Session)
	assert.Equal(t, 2, resp.Data.Events)
	assert.Equal(t, db, resp.Data.DB)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	sessions, err := st.Sessions(context.Background(), "run1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "cli-session", sessions[0].Session)
}

// waitingDesign blocks in its pre event until space is pressed.
const waitingDesign = `
package waiting

name:  "waiting"
order: ["a"]

pre: {kind: "event", name: "ready", duration: "forever", skip: ["space"]}

condition: a: events: [{kind: "draw", name: "stim", duration: 0.05, draw: ["dot"]}]
`

func waitingEnv(t *testing.T, db string) map[string]string {
	t.Helper()
	return map[string]string{
		"EXPCTL_SUBJECT":    "s01",
		"EXPCTL_CONTEXT":    "run1",
		"EXPCTL_DESIGN":     writeDesign(t, waitingDesign),
		"EXPCTL_DB":         db,
		"EXPCTL_FRAME_RATE": "200",
	}
}

func TestRunSession_KeysFromStdin(t *testing.T) {
	db := filepath.Join(t.TempDir(), "run.db")
	opts, cmd, out := runOptions(t, "text", waitingEnv(t, db))
	cmd.SetIn(strings.NewReader("space\n"))

	require.NoError(t, runSession(opts, cmd))
	assert.Contains(t, out.String(), "1 events, 0 responses")
}

func TestRunSession_AbortFromStdin(t *testing.T) {
	db := filepath.Join(t.TempDir(), "run.db")
	opts, cmd, out := runOptions(t, "text", waitingEnv(t, db))
	cmd.SetIn(strings.NewReader("escape\n"))

	err := runSession(opts, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out.String(), "session aborted")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	sessions, err := st.Sessions(context.Background(), "run1")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRunSession_OverridesWinOverEnvironment(t *testing.T) {
	opts, cmd, out := runOptions(t, "text", map[string]string{
		"EXPCTL_SUBJECT":    "env-subject",
		"EXPCTL_CONTEXT":    "run1",
		"EXPCTL_DESIGN":     writeDesign(t, quickDesign),
		"EXPCTL_DB":         filepath.Join(t.TempDir(), "run.db"),
		"EXPCTL_FRAME_RATE": "200",
	})
	opts.Overrides["EXPCTL_SUBJECT"] = "flag-subject"
	opts.Overrides["EXPCTL_ORDER"] = "b"

	require.NoError(t, runSession(opts, cmd))
	assert.Contains(t, out.String(), "Session cli-session stored in")
	assert.Contains(t, out.String(), "1 events")
}

func TestRunSession_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		code int
	}{
		{
			name: "missing subject",
			env:  map[string]string{"EXPCTL_CONTEXT": "run1"},
			code: ExitCommandError,
		},
		{
			name: "unknown condition",
			env: map[string]string{
				"EXPCTL_SUBJECT": "s01",
				"EXPCTL_CONTEXT": "run1",
				"EXPCTL_ORDER":   "a,zzz",
			},
			code: ExitCommandError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.env["EXPCTL_DESIGN"] = writeDesign(t, quickDesign)
			tt.env["EXPCTL_DB"] = filepath.Join(t.TempDir(), "run.db")
			opts, cmd, out := runOptions(t, "text", tt.env)

			err := runSession(opts, cmd)
			require.Error(t, err)
			assert.Equal(t, tt.code, GetExitCode(err))
			assert.Contains(t, out.String(), "Error [")
		})
	}
}

func TestEnvironMap(t *testing.T) {
	env := environMap([]string{"A=1", "B=x=y", "broken"})
	assert.Equal(t, map[string]string{"A": "1", "B": "x=y"}, env)
}
