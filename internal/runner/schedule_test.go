package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appLog "calstatus/internal/log"
)

func TestSchedule_InvalidSpec(t *testing.T) {
	err := Schedule(context.Background(), "every now and then", time.UTC, func(context.Context) {}, appLog.Nop())
	assert.Error(t, err)
}

func TestSchedule_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Schedule(ctx, "@every 1h", time.UTC, func(context.Context) {}, appLog.Nop())
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
