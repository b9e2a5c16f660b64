package docintel

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient walks through a scripted sequence of operation states.
type fakeClient struct {
	states []AnalyzeOperation
	calls  int
}

func (f *fakeClient) Analyze(ctx context.Context, document []byte, contentType string) (string, error) {
	return "op-1", nil
}

func (f *fakeClient) GetResult(ctx context.Context, operationID string) (*AnalyzeOperation, error) {
	if f.calls >= len(f.states) {
		return nil, eris.New("no more states")
	}
	op := f.states[f.calls]
	f.calls++
	return &op, nil
}

func TestPollResult_SucceedsAfterRunning(t *testing.T) {
	client := &fakeClient{states: []AnalyzeOperation{
		{Status: StatusNotStarted},
		{Status: StatusRunning},
		{Status: StatusSucceeded, Result: &AnalyzeResult{ModelID: "prebuilt-invoice"}},
	}}

	result, err := PollResult(context.Background(), client, "op-1", WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, "prebuilt-invoice", result.ModelID)
	assert.Equal(t, 3, client.calls)
}

func TestPollResult_OperationFailed(t *testing.T) {
	client := &fakeClient{states: []AnalyzeOperation{
		{Status: StatusFailed, Error: &OperationError{Code: "InvalidContent", Message: "unreadable document"}},
	}}

	_, err := PollResult(context.Background(), client, "op-1", WithPollInterval(time.Millisecond))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidContent")
}

func TestPollResult_SucceededWithoutResult(t *testing.T) {
	client := &fakeClient{states: []AnalyzeOperation{{Status: StatusSucceeded}}}

	_, err := PollResult(context.Background(), client, "op-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no result")
}

func TestPollResult_Timeout(t *testing.T) {
	client := &fakeClient{states: []AnalyzeOperation{
		{Status: StatusRunning}, {Status: StatusRunning}, {Status: StatusRunning},
		{Status: StatusRunning}, {Status: StatusRunning}, {Status: StatusRunning},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := PollResult(ctx, client, "op-1", WithPollInterval(5*time.Millisecond))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestAnalyzeDocument(t *testing.T) {
	client := &fakeClient{states: []AnalyzeOperation{
		{Status: StatusRunning},
		{Status: StatusSucceeded, Result: &AnalyzeResult{ModelID: "prebuilt-invoice"}},
	}}

	result, err := AnalyzeDocument(context.Background(), client, []byte("doc"), "application/pdf", WithPollInterval(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, "prebuilt-invoice", result.ModelID)
}
