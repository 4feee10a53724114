package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionDistinguishesAbsentFromZero(t *testing.T) {
	shared := newSharedContext(nil)
	view := newView("test", shared)

	_, ok := view.GetSessionData("flag")
	require.False(t, ok)
	require.False(t, view.HasSessionData("flag"))

	view.SetSessionData("flag", false)
	value, ok := view.GetSessionData("flag")
	require.True(t, ok)
	require.Equal(t, false, value)

	view.SetSessionData("handle", nil)
	value, ok = view.GetSessionData("handle")
	require.True(t, ok)
	require.Nil(t, value)
	require.True(t, view.HasSessionData("handle"))
}

func TestViewsShareTheContext(t *testing.T) {
	shared := newSharedContext(nil)
	first := newView("first", shared)
	second := newView("second", shared)

	first.SetSessionData("browser.page", 1)
	value, ok := second.GetSessionData("browser.page")
	require.True(t, ok)
	require.Equal(t, 1, value)

	first.AddData(map[string]any{"a": 1})
	second.AddData(map[string]any{"b": 2})
	require.Equal(t, map[string]any{"a": 1, "b": 2}, shared.data)
}

func TestNotifyProgressBindsName(t *testing.T) {
	var got []progressEvent
	shared := newSharedContext(func(name string, phase Phase) {
		got = append(got, progressEvent{Adapter: name, Phase: phase})
	})

	newView("login", shared).NotifyProgress("LOGGING_IN")
	newView("scrape", shared).NotifyProgress(START_ADAPTER)

	require.Equal(t, []progressEvent{
		{"login", "LOGGING_IN"},
		{"scrape", START_ADAPTER},
	}, got)
}

func TestTerminalErrorIsSetOnce(t *testing.T) {
	shared := newSharedContext(nil)
	shared.setTerminalError(failureOutcome("INVALID_PASSWORD", ""))
	shared.setTerminalError(failureOutcome("OTHER", "later"))
	require.Equal(t, "INVALID_PASSWORD", shared.terminal.ErrorType)
}

func TestMergeEmptyPartial(t *testing.T) {
	shared := newSharedContext(nil)
	shared.mergeData(nil)
	shared.mergeData(map[string]any{})
	require.Empty(t, shared.data)
}

func TestCloneDataNormalizes(t *testing.T) {
	type row struct{ Amount int }
	original := map[string]any{
		"list":   []string{"a", "b"},
		"nested": map[string]int{"n": 1},
		"bytes":  []byte("raw"),
		"struct": row{Amount: 3},
	}
	cloned := cloneData(original)

	require.Equal(t, []any{"a", "b"}, cloned["list"])
	require.Equal(t, map[string]any{"n": 1}, cloned["nested"])
	require.Equal(t, []byte("raw"), cloned["bytes"])
	require.Equal(t, row{Amount: 3}, cloned["struct"])
}

func TestTypedKeys(t *testing.T) {
	shared := newSharedContext(nil)
	view := newView("test", shared)
	count := NewKey[int]("counter")

	_, ok := count.Get(view)
	require.False(t, ok)

	view.SetSessionData("counter", "not a number")
	require.False(t, count.Has(view))
	require.Equal(t, []string{`missing session data "counter"`}, Requires(count)(context.Background(), view))

	count.Set(view, 0)
	value, ok := count.Get(view)
	require.True(t, ok)
	require.Equal(t, 0, value)
	require.Empty(t, Requires(count)(context.Background(), view))

	count.Delete(view)
	require.False(t, view.HasSessionData("counter"))
	require.Equal(t, []string{`missing session data "counter"`}, Requires(count)(context.Background(), view))
}

func TestValidatorHelpers(t *testing.T) {
	view := newView("test", newSharedContext(nil))
	validate := All(
		Check(true, "never"),
		Check(false, "username is required"),
		Requires(NewKey[string]("http.client")),
		NoPreconditions,
	)
	require.Equal(t, []string{
		"username is required",
		`missing session data "http.client"`,
	}, validate(context.Background(), view))
}
