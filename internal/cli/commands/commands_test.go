package commands

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaplineage/internal/cli/config"
	"github.com/leapstack-labs/leaplineage/internal/engine"
	"github.com/leapstack-labs/leaplineage/internal/state"
	"github.com/leapstack-labs/leaplineage/internal/transport"
	"github.com/leapstack-labs/leaplineage/pkg/core"

	_ "github.com/leapstack-labs/leaplineage/pkg/adapters/duckdb"
)

func TestNewRunCommand(t *testing.T) {
	cmd := NewRunCommand()

	assert.Equal(t, "run", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	for _, flag := range []string{"select", "downstream"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
	assert.Equal(t, []string{"build"}, cmd.Aliases)
}

func TestNewEventsCommand(t *testing.T) {
	cmd := NewEventsCommand()

	assert.Equal(t, "events", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")

	for _, flag := range []string{"run", "limit", "json"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
	assert.Equal(t, "20", cmd.Flags().Lookup("limit").DefValue)
}

func TestNewModelsCommand(t *testing.T) {
	cmd := NewModelsCommand()

	assert.Equal(t, "models", cmd.Use)
	assert.Contains(t, cmd.Aliases, "list")
}

func TestNewCommandContext_NoConfig(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	_, err := NewCommandContext(cmd)
	assert.ErrorIs(t, err, ErrNoConfig)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b ,"))
}

func TestRenderRunResult(t *testing.T) {
	res := &engine.RunResult{
		Duration: 1500 * time.Millisecond,
		Models: []engine.ModelResult{
			{UniqueID: "model.shop.a", RunID: "run-a", Status: engine.StatusSuccess, Rows: 42},
			{UniqueID: "model.shop.b", RunID: "run-b", Status: engine.StatusFailed, Err: errors.New("bad_request: syntax\nat line 1")},
			{UniqueID: "model.shop.c", Status: engine.StatusSkipped},
		},
	}

	buf := new(bytes.Buffer)
	renderRunResult(buf, res)
	out := buf.String()

	assert.Contains(t, out, "model.shop.a")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "run-b")
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "model.shop.b:\n  bad_request: syntax\n  at line 1")
	assert.Contains(t, out, "Completed in 1.5s: 1 succeeded, 1 failed, 1 skipped")
}

func TestRenderEvents(t *testing.T) {
	buf := new(bytes.Buffer)
	renderEvents(buf, nil)
	assert.Equal(t, "(0 events)\n", buf.String())

	buf.Reset()
	renderEvents(buf, []*state.EventRecord{{
		RunID:        "run-1",
		EventType:    core.EventTypeFail,
		JobNamespace: "shop",
		JobName:      "model.shop.orders",
		EventTime:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}})
	out := buf.String()
	assert.Contains(t, out, "2024-03-01T12:00:00Z")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "(1 events)")
}

func TestNewEmitter(t *testing.T) {
	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })

	em, _, err := newEmitter(&config.LineageConfig{Transport: transport.TypeSQLite}, nil, store)
	require.NoError(t, err)
	assert.IsType(t, &transport.StoreEmitter{}, em)

	em, _, err = newEmitter(&config.LineageConfig{Transport: transport.TypeNone}, nil, store)
	require.NoError(t, err)
	fan, ok := em.(transport.Fanout)
	require.True(t, ok)
	assert.Len(t, fan, 2)

	em, _, err = newEmitter(&config.LineageConfig{Transport: transport.TypeNone}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, transport.Noop{}, em)

	_, _, err = newEmitter(&config.LineageConfig{Transport: transport.TypeSQLite}, nil, nil)
	assert.ErrorIs(t, err, transport.ErrStoreRequired)
}

func TestNewEmitter_GoChannel(t *testing.T) {
	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })

	em, closeFn, err := newEmitter(&config.LineageConfig{Transport: transport.TypeGoChannel}, nil, store)
	require.NoError(t, err)
	fan, ok := em.(transport.Fanout)
	require.True(t, ok)
	require.Len(t, fan, 2)
	assert.IsType(t, &transport.PublisherEmitter{}, fan[0])

	ev := &core.LineageEvent{
		EventType: core.EventTypeFail,
		EventTime: time.Now().UTC(),
		Run:       core.Run{RunID: "run-1"},
		Job:       core.Job{Namespace: "shop", Name: "model.shop.orders"},
		Inputs:    []core.Dataset{},
		Outputs:   []core.Dataset{},
	}
	require.NoError(t, em.Emit(context.Background(), ev))
	assert.NoError(t, closeFn())

	events, err := store.ListEvents(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestNewRuntime(t *testing.T) {
	cfg := &config.Config{
		Project:     "shop",
		ModelsDir:   t.TempDir(),
		Concurrency: 2,
		Target:      &config.TargetConfig{Type: "duckdb"},
		Lineage:     &config.LineageConfig{Transport: transport.TypeSQLite, StatePath: ":memory:"},
	}
	cmdCtx := &CommandContext{Cfg: cfg, Logger: config.GetLogger(context.Background())}

	rt, err := cmdCtx.NewRuntime(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, rt.Engine)
	assert.NotNil(t, rt.Store)
	assert.NoError(t, rt.Close())
}

func TestNewRuntime_ConnectError(t *testing.T) {
	cfg := &config.Config{
		Project:     "shop",
		Concurrency: 1,
		Target: &config.TargetConfig{
			Type:   "duckdb",
			Params: map[string]any{"unknown_param": true},
		},
		Lineage: &config.LineageConfig{Transport: transport.TypeNone},
	}
	cmdCtx := &CommandContext{Cfg: cfg, Logger: config.GetLogger(context.Background())}

	_, err := cmdCtx.NewRuntime(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to duckdb")
}
