package demo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seonyeopkim/asyncaction/store"
)

func settle(t *testing.T, p Program) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Settle(ctx))
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"logCount", "logcount"},
		{"log_count", "logcount"},
		{"Log-Count", "logcount"},
		{"  resetState ", "resetstate"},
		{"ｉｎｃｒｅａｓｅ", "increase"}, // fullwidth folds under NFKC
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestRegistry_UnknownAction(t *testing.T) {
	r := NewRegistry[CounterAction]().Value("increase", Increase)

	_, err := r.Build("explode", nil)
	var unknown *UnknownActionError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "explode", unknown.Name)
	assert.Equal(t, []string{"increase"}, unknown.Known)
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry[CounterAction]().Value("increase", Increase)
	assert.Panics(t, func() { r.Value("INCREASE", Increase) })
}

func TestCounter_Reduce(t *testing.T) {
	s := NewCounterStore()
	defer s.Close()

	s.Test(Increase, func(state CounterState, fx store.Effect[CounterAction, IncreaseLater]) {
		assert.Equal(t, 1, state.Count)
		assert.True(t, fx.IsNone())
	})
	s.Test(LogCount, func(state CounterState, _ store.Effect[CounterAction, IncreaseLater]) {
		assert.Equal(t, "1", state.LogValue())
		assert.Equal(t, uint64(1), state.Log.Version())
	})
	s.Test(ResetState, func(state CounterState, _ store.Effect[CounterAction, IncreaseLater]) {
		assert.Equal(t, CounterState{}, state)
	})
}

func TestCounter_IncreaseLater(t *testing.T) {
	s := NewCounterStore()
	defer s.Close()

	s.TestAsync(context.Background(), IncreaseLater{After: time.Millisecond}, func(fx store.Effect[CounterAction, IncreaseLater]) {
		assert.True(t, fx.Equal(store.Reduce[CounterAction, IncreaseLater](Increase)))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.TestAsync(ctx, IncreaseLater{After: time.Hour}, func(fx store.Effect[CounterAction, IncreaseLater]) {
		assert.True(t, fx.IsNone(), "cancelled wait does not increase")
	})
}

func TestLoader_EachAction(t *testing.T) {
	s := NewLoaderStore(SimulatedFetch(DefaultData, 0, false))
	defer s.Close()

	s.Test(RequestData{}, func(state LoaderState, fx store.Effect[LoaderAction, LoaderAsync]) {
		assert.Equal(t, LoaderState{IsLoading: true}, state)
		assert.True(t, fx.Equal(store.Run[LoaderAction, LoaderAsync](LoadDataFromServer{})))
	})

	s.TestAsync(context.Background(), LoadDataFromServer{}, func(fx store.Effect[LoaderAction, LoaderAsync]) {
		assert.True(t, fx.Equal(store.Reduce[LoaderAction, LoaderAsync](Update{Data: DefaultData})), fx.String())
	})

	s.Test(Update{Data: DefaultData}, func(state LoaderState, fx store.Effect[LoaderAction, LoaderAsync]) {
		assert.Equal(t, LoaderState{Data: DefaultData}, state)
		assert.True(t, fx.IsNone())
	})
}

func TestLoader_FailureBecomesAction(t *testing.T) {
	s := NewLoaderStore(func(context.Context) (string, error) {
		return "", errors.New("connection reset")
	})
	defer s.Close()

	s.TestAsync(context.Background(), LoadDataFromServer{}, func(fx store.Effect[LoaderAction, LoaderAsync]) {
		action, ok := fx.Action()
		require.True(t, ok)
		failed, ok := action.(Failed)
		require.True(t, ok)
		assert.ErrorIs(t, failed.Err, ErrFailedToLoadData)
	})
}

func TestOpen_Counter(t *testing.T) {
	p, err := Open("counter", Config{})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Send("increase", nil))
	require.NoError(t, p.Send("log_count", nil))
	require.NoError(t, p.Run("increaseLater", Args{"after": "1ms"}))
	settle(t, p)

	state, ok := p.State().(CounterState)
	require.True(t, ok)
	assert.Equal(t, 2, state.Count)
	assert.Equal(t, "1", state.LogValue())

	assert.Error(t, p.Run("increaseLater", Args{"after": "soon"}))
	assert.Equal(t, []string{"increase", "decrease", "logCount", "resetState"}, p.Actions())
}

func TestOpen_LoaderChain(t *testing.T) {
	p, err := Open("loader", Config{Data: "X"})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Send("requestData", nil))
	settle(t, p)

	assert.Equal(t, LoaderState{Data: "X"}, p.State())
}

func TestOpen_LoaderFailure(t *testing.T) {
	p, err := Open("loader", Config{Fail: true})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Send("requestData", nil))
	settle(t, p)

	assert.Equal(t, LoaderState{Error: ErrFailedToLoadData.Error()}, p.State())

	err = p.Send("update", nil)
	var missing *MissingArgError
	assert.ErrorAs(t, err, &missing)
}

func TestOpen_Unknown(t *testing.T) {
	_, err := Open("spreadsheet", Config{})
	assert.ErrorIs(t, err, ErrUnknownDemo)
}
