package pipeline

import (
	"context"

	"github.com/existential-birds/amelia-sub017/driver"
)

// fakeDriver returns one scripted driver.Result per call, in order,
// repeating the last result once the script runs out. It records every
// request it was given so tests can assert on prompts and ordering.
type fakeDriver struct {
	Results []driver.Result
	calls   []driver.Request
	i       int
}

func (f *fakeDriver) Invoke(ctx context.Context, req driver.Request, sink driver.StreamSink) (driver.Result, error) {
	f.calls = append(f.calls, req)
	idx := f.i
	f.i++
	result := driver.Result{TerminalReason: driver.TerminalCompleted}
	switch {
	case idx < len(f.Results):
		result = f.Results[idx]
	case len(f.Results) > 0:
		result = f.Results[len(f.Results)-1]
	}
	sink.Notify(ctx, driver.Notification{Kind: driver.NotifyAgentMessage, Agent: req.Agent, Message: result.FinalOutput})
	return result, nil
}

func (f *fakeDriver) CallCount() int { return len(f.calls) }

func registryWithDriver(variant string, d driver.Driver) *driver.Registry {
	r := driver.NewRegistry()
	r.Register(variant, d)
	return r
}
