package runner_test

import (
	"testing"

	"github.com/eagraf/holochain-runner/internal/runner"
	"github.com/stretchr/testify/assert"
)

func TestShutdownToken(t *testing.T) {
	tok := runner.NewShutdownToken()
	assert.Equal(t, runner.TokenPending, tok.State())

	select {
	case <-tok.Requested():
		t.Fatal("requested before Request")
	default:
	}

	assert.True(t, tok.Request())
	assert.False(t, tok.Request())
	assert.Equal(t, runner.TokenRequested, tok.State())
	<-tok.Requested()

	tok.Complete()
	tok.Complete()
	assert.Equal(t, runner.TokenCompleted, tok.State())
	<-tok.Completed()

	// Never moves backwards.
	assert.False(t, tok.Request())
	assert.Equal(t, runner.TokenCompleted, tok.State())
}

func TestCompleteImpliesRequest(t *testing.T) {
	tok := runner.NewShutdownToken()
	tok.Complete()
	<-tok.Requested()
	<-tok.Completed()
	assert.Equal(t, "completed", tok.State().String())
}
