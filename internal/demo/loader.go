package demo

import (
	"context"
	"errors"
	"time"

	"github.com/seonyeopkim/asyncaction/store"
)

// ErrFailedToLoadData is recorded in LoaderState.Error when a fetch fails.
var ErrFailedToLoadData = errors.New("failed to load data")

// LoaderState is the state of the loader demo.
type LoaderState struct {
	Data      string `yaml:"data" json:"data"`
	Error     string `yaml:"error,omitempty" json:"error,omitempty"`
	IsLoading bool   `yaml:"is_loading" json:"is_loading"`
}

// LoaderAction is a synchronous loader action: RequestData, Update or Failed.
type LoaderAction interface {
	loaderAction()
}

// RequestData starts loading.
type RequestData struct{}

// Update stores freshly loaded data.
type Update struct {
	Data string
}

// Failed records a load failure.
type Failed struct {
	Err error
}

func (RequestData) loaderAction() {}
func (Update) loaderAction()      {}
func (Failed) loaderAction()      {}

func (RequestData) String() string { return "requestData" }
func (a Update) String() string    { return "update(" + a.Data + ")" }
func (a Failed) String() string {
	if a.Err == nil {
		return "failed"
	}
	return "failed(" + a.Err.Error() + ")"
}

// LoaderAsync is the loader's async action. LoadDataFromServer is the only one.
type LoaderAsync interface {
	loaderAsync()
}

// LoadDataFromServer fetches data with the loader's Fetcher.
type LoadDataFromServer struct{}

func (LoadDataFromServer) loaderAsync()   {}
func (LoadDataFromServer) String() string { return "loadDataFromServer" }

// Fetcher loads data for the loader demo.
type Fetcher func(ctx context.Context) (string, error)

// SimulatedFetch returns a Fetcher that waits for delay, then returns data,
// or fails when fail is set.
func SimulatedFetch(data string, delay time.Duration, fail bool) Fetcher {
	return func(ctx context.Context) (string, error) {
		if !sleep(ctx, delay) {
			return "", ctx.Err()
		}
		if fail {
			return "", errors.New("simulated server error")
		}
		return data, nil
	}
}

// Loader reduces LoaderState. Fetch failures, cancellation included, become
// Failed actions.
type Loader struct {
	Fetch Fetcher
}

var loaderFx store.Effects[LoaderAction, LoaderAsync]

func (l Loader) Reduce(state *LoaderState, action LoaderAction) store.Effect[LoaderAction, LoaderAsync] {
	switch a := action.(type) {
	case RequestData:
		state.IsLoading = true
		state.Error = ""
		return loaderFx.Run(LoadDataFromServer{})
	case Update:
		state.Data = a.Data
		state.IsLoading = false
	case Failed:
		state.Error = ErrFailedToLoadData.Error()
		if a.Err != nil {
			state.Error = a.Err.Error()
		}
		state.IsLoading = false
	}
	return loaderFx.None()
}

func (l Loader) Run(ctx context.Context, action LoaderAsync) store.Effect[LoaderAction, LoaderAsync] {
	switch action.(type) {
	case LoadDataFromServer:
		data, err := l.Fetch(ctx)
		if err != nil {
			return loaderFx.Reduce(Failed{Err: ErrFailedToLoadData})
		}
		return loaderFx.Reduce(Update{Data: data})
	}
	return loaderFx.None()
}

// NewLoaderStore creates a loader store with empty state.
func NewLoaderStore(fetch Fetcher, opts ...store.Option) *store.Store[LoaderState, LoaderAction, LoaderAsync] {
	return store.New(store.Reducer[LoaderState, LoaderAction, LoaderAsync](Loader{Fetch: fetch}), &LoaderState{}, opts...)
}
