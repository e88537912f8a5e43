package cli

import (
	"context"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jooh/expcontrol/internal/engine"
	"github.com/jooh/expcontrol/internal/ir"
	"github.com/jooh/expcontrol/internal/store"
)

func seedStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "log.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	for _, id := range []string{"first", "second"} {
		stim := ir.NewEventRecord("stim", 0)
		stim.Condition = "a"
		res := &engine.Result{
			Session: id,
			Subject: "s01",
			Context: "run1",
			Started: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
			Events:  ir.EventLog{stim},
			Responses: ir.ResponseLog{
				{Time: 0.25, Key: "f", Score: 1, RT: 0.25},
				{Time: 0.4, Key: "g", Score: math.NaN(), RT: math.NaN()},
			},
		}
		require.NoError(t, st.Append(context.Background(), res))
	}
	return path
}

func TestLog_Text(t *testing.T) {
	out, err := execute(t, "log", "--db", seedStore(t), "--context", "run1")
	require.NoError(t, err)

	assert.Contains(t, out, "Context run1: 2 session(s)")
	assert.Contains(t, out, "Events (2):")
	assert.Contains(t, out, "score=1.000 rt=0.250")
	assert.Contains(t, out, "score=- rt=-")
}

func TestLog_JSONSession(t *testing.T) {
	out, err := execute(t, "--format", "json", "log", "--db", seedStore(t), "--context", "run1", "--session", "second")
	require.NoError(t, err)

	var resp struct {
		Data LogResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"second"}, resp.Data.Sessions)
	require.Len(t, resp.Data.Events, 1)
	assert.Nil(t, resp.Data.Events[0].OnCall)
	require.Len(t, resp.Data.Responses, 2)
	require.NotNil(t, resp.Data.Responses[0].Score)
	assert.Equal(t, 1.0, *resp.Data.Responses[0].Score)
	assert.Nil(t, resp.Data.Responses[1].RT)
}

func TestLog_UnknownContext(t *testing.T) {
	out, err := execute(t, "log", "--db", seedStore(t), "--context", "nope")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found for context: nope")
}

func TestLog_RequiresFlags(t *testing.T) {
	_, err := execute(t, "log", "--db", "x.db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}
