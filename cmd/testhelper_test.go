package cmd

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"

	flog "fabrikmcp/internal/log"
)

// syncBuffer collects command output and logs written from server goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// setContext gives cmd and all of its subcommands ctx. cobra only hands the
// root context down to a subcommand that has none yet.
func setContext(cmd *cobra.Command, ctx context.Context) {
	cmd.SetContext(ctx)
	for _, c := range cmd.Commands() {
		setContext(c, ctx)
	}
}

// GenericCommandRunner executes cmd, captures its output and logs and checks
// that each assertion string appears, ignoring case.
func GenericCommandRunner(t *testing.T, cmd *cobra.Command, outputAssertions ...string) (string, error) {
	t.Helper()
	assert := assert.New(t)
	assert.NotNil(cmd)

	b := &syncBuffer{}
	flog.SetOutput(b)
	defer flog.SetOutput(nopWriter{})
	cmd.SetOut(b)
	cmd.SetErr(b)

	err := cmd.Execute()
	out := b.String()

	for _, oa := range outputAssertions {
		assert.Contains(strings.ToLower(out), strings.ToLower(oa))
	}
	return out, err
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

// runSubCommand runs cmd until wait has passed, then cancels it and checks
// the output.
func runSubCommand(t *testing.T, cmd *cobra.Command, wait time.Duration, outputAssertions []string) {
	t.Helper()

	cancelableCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setContext(cmd, cancelableCtx)
	defer setContext(cmd, context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := GenericCommandRunner(t, cmd, outputAssertions...)
		assert.NoError(t, err)
	}()

	// we need to wait for the command to start ...
	time.Sleep(wait)
	// ... then cancel it
	cancel()
	// don't exit until it has called our wg.Done()
	wg.Wait()
}
