package httpapi

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSetBaseContext_NilResetsToBackground(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	SetBaseContext(ctx)
	// nolint:staticcheck // SA1012: nil selects the background context
	SetBaseContext(nil)
	cancel()

	ictx, release := inferContext(httptest.NewRequest("POST", "/infer", nil))
	defer release()
	select {
	case <-ictx.Done():
		t.Fatal("infer context canceled by a base context that was replaced")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestInferContext_CancelsWithBase(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	SetBaseContext(base)
	defer SetBaseContext(nil)

	ictx, release := inferContext(httptest.NewRequest("POST", "/infer", nil))
	defer release()
	cancel()
	select {
	case <-ictx.Done():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("infer context did not cancel with base context")
	}
}

func TestInferContext_CancelsWithRequest(t *testing.T) {
	rctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("POST", "/infer", nil).WithContext(rctx)
	ictx, release := inferContext(req)
	defer release()
	cancel()
	select {
	case <-ictx.Done():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("infer context did not cancel with request")
	}
}

func TestInferContext_Timeout(t *testing.T) {
	SetInferTimeout(20 * time.Millisecond)
	defer SetInferTimeout(0)

	ictx, release := inferContext(httptest.NewRequest("POST", "/infer", nil))
	defer release()
	if _, ok := ictx.Deadline(); !ok {
		t.Fatal("expected a deadline")
	}
	<-ictx.Done()
	if ictx.Err() != context.DeadlineExceeded {
		t.Fatalf("err=%v", ictx.Err())
	}
}
