package main

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	apperrors "github.com/orderbot/orderbot-sync/internal/errors"
	"github.com/orderbot/orderbot-sync/internal/syncer"
)

type fakeRunner struct {
	summary syncer.Summary
	err     error
	calls   int
}

func (f *fakeRunner) Run(context.Context) (syncer.Summary, error) {
	f.calls++
	return f.summary, f.err
}

func TestHandleScheduledEvent(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "success",
			wantStatus: http.StatusOK,
			wantBody:   `"Data inserted successfully!"`,
		},
		{
			name:       "lock held",
			err:        apperrors.ErrSyncInProgress,
			wantStatus: http.StatusConflict,
			wantBody:   `"another sync is already in progress"`,
		},
		{
			name:       "failure",
			err:        errors.New(`failed to connect to "db"`),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `"failed to connect to \"db\""`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{err: tt.err}
			handler := NewHandler(runner)

			resp, err := handler.HandleScheduledEvent(context.Background(), events.CloudWatchEvent{DetailType: "Scheduled Event"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if resp.Body != tt.wantBody {
				t.Errorf("Body = %s, want %s", resp.Body, tt.wantBody)
			}
			if runner.calls != 1 {
				t.Errorf("Run called %d times, want 1", runner.calls)
			}
		})
	}
}

func TestHandleScheduledEvent_LazyResolution(t *testing.T) {
	var (
		runner     = &fakeRunner{}
		resolveErr = errors.New("missing required config: database")
		resolves   int
	)
	handler := NewLazyHandler(func() (Runner, error) {
		resolves++
		if resolves == 1 {
			return nil, resolveErr
		}
		return runner, nil
	})

	tests := []struct {
		name         string
		wantStatus   int
		wantBody     string
		wantResolves int
		wantRuns     int
	}{
		{
			name:         "resolution fails",
			wantStatus:   http.StatusInternalServerError,
			wantBody:     `"missing required config: database"`,
			wantResolves: 1,
			wantRuns:     0,
		},
		{
			name:         "retries resolution",
			wantStatus:   http.StatusOK,
			wantBody:     `"Data inserted successfully!"`,
			wantResolves: 2,
			wantRuns:     1,
		},
		{
			name:         "reuses resolved runner",
			wantStatus:   http.StatusOK,
			wantBody:     `"Data inserted successfully!"`,
			wantResolves: 2,
			wantRuns:     2,
		},
	}

	// cases run in order against the same handler
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := handler.HandleScheduledEvent(context.Background(), events.CloudWatchEvent{DetailType: "Scheduled Event"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if resp.Body != tt.wantBody {
				t.Errorf("Body = %s, want %s", resp.Body, tt.wantBody)
			}
			if resolves != tt.wantResolves {
				t.Errorf("resolve called %d times, want %d", resolves, tt.wantResolves)
			}
			if runner.calls != tt.wantRuns {
				t.Errorf("Run called %d times, want %d", runner.calls, tt.wantRuns)
			}
		})
	}
}
