package errors_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vnykmshr/chanflow/internal/testutil"
	gferrors "github.com/vnykmshr/chanflow/pkg/common/errors"
	"github.com/vnykmshr/chanflow/pkg/scheduling/workerpool"
	"github.com/vnykmshr/chanflow/pkg/streaming/channel"
	"github.com/vnykmshr/chanflow/pkg/streaming/writer"
)

// TestConstructorsReturnValidationErrors checks the errors the packages'
// Safe constructors return for bad settings, not hand-built values.
func TestConstructorsReturnValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		build  func() error
		module string
		field  string
		value  interface{}
	}{
		{
			name: "channel capacity",
			build: func() error {
				_, err := channel.NewSafe[int](0)
				return err
			},
			module: "channel",
			field:  "capacity",
			value:  0,
		},
		{
			name: "channel negative capacity",
			build: func() error {
				_, err := channel.NewWithConfigSafe[string](channel.Config{Capacity: -3})
				return err
			},
			module: "channel",
			field:  "capacity",
			value:  -3,
		},
		{
			name: "pool workers",
			build: func() error {
				_, err := workerpool.NewWithConfigSafe(workerpool.Config{QueueSize: 1})
				return err
			},
			module: "workerpool",
			field:  "workerCount",
			value:  0,
		},
		{
			name: "writer queue",
			build: func() error {
				config := writer.DefaultConfig()
				config.QueueSize = 0
				_, err := writer.NewWithConfigSafe(testutil.NewSafeBuffer(), config)
				return err
			},
			module: "writer",
			field:  "queueSize",
			value:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build()

			testutil.AssertErrorIs(t, err, gferrors.ErrInvalidConfiguration)
			testutil.AssertEqual(t, gferrors.IsValidationError(err), true)
			testutil.AssertEqual(t, gferrors.IsRetryable(err), false)
			testutil.AssertEqual(t, gferrors.IsTerminal(err), false)

			var verr *gferrors.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			testutil.AssertEqual(t, verr.Module, tt.module)
			testutil.AssertEqual(t, verr.Field, tt.field)
			testutil.AssertEqual(t, verr.Value, tt.value)
			testutil.AssertEqual(t, errors.Unwrap(err), gferrors.ErrInvalidConfiguration)
		})
	}
}

// TestRuntimeErrorsClassify checks IsRetryable and IsTerminal against the
// errors channels, pools and writers return at run time.
func TestRuntimeErrorsClassify(t *testing.T) {
	full := channel.New[int](1)
	testutil.AssertNoError(t, full.Send(1))
	fullErr := full.TrySend(2)
	timeoutErr := full.SendTimeout(2, 0)
	full.Close()
	closedErr := full.Send(3)

	pool := workerpool.New(1, 1)
	<-pool.Shutdown()
	submitErr := pool.Submit(workerpool.TaskFunc(func(context.Context) error { return nil }))

	w := writer.New(testutil.NewSafeBuffer())
	testutil.AssertNoError(t, w.Close())
	writerErr := w.WriteString("late")

	tests := []struct {
		name      string
		err       error
		retryable bool
		terminal  bool
	}{
		{"channel full", fullErr, true, false},
		{"channel timeout", timeoutErr, true, false},
		{"channel closed", closedErr, false, true},
		{"submit after shutdown", submitErr, false, true},
		{"writer closed", writerErr, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertError(t, tt.err)
			testutil.AssertEqual(t, gferrors.IsRetryable(tt.err), tt.retryable)
			testutil.AssertEqual(t, gferrors.IsTerminal(tt.err), tt.terminal)
			testutil.AssertEqual(t, gferrors.IsValidationError(tt.err), false)
		})
	}

	var opErr *gferrors.OperationError
	if !errors.As(submitErr, &opErr) {
		t.Fatalf("expected *OperationError, got %T", submitErr)
	}
	testutil.AssertEqual(t, opErr.Module, "workerpool")
	testutil.AssertErrorIs(t, submitErr, channel.ErrClosed)
}
