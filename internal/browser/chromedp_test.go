package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChromePage(t *testing.T) *chromePage {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &chromePage{
		ctx:    ctx,
		cancel: cancel,
		names:  make(map[string]string),
		done:   make(chan string, 8),
	}
}

func TestRun_CallerCancelLeavesTabAlive(t *testing.T) {
	p := testChromePage(t)

	expired, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.run(expired, 0)
	require.Error(t, err)
	assert.NoError(t, p.ctx.Err())
}

func TestRun_TimeoutLeavesTabAlive(t *testing.T) {
	p := testChromePage(t)

	err := p.run(context.Background(), time.Millisecond)
	require.Error(t, err)

	time.Sleep(5 * time.Millisecond)
	assert.NoError(t, p.ctx.Err())
}

func TestQueryOpt(t *testing.T) {
	assert.True(t, isXPath("//table/tbody/tr"))
	assert.True(t, isXPath(`(//a[@title="Descargar"])[3]`))
	assert.False(t, isXPath("#login-form input[name=user]"))
}
