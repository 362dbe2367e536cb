package goRotate

import (
	"context"
	"testing"
	"time"
)

func newAuditedEngine(t *testing.T, configure ...func(*Builder)) (*testEngine, *ChannelSink) {
	t.Helper()

	sink := NewChannelSink(64)
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false

	opts := append([]func(*Builder){func(b *Builder) {
		b.WithConfig(cfg).WithAuditSink(sink).WithMetricsEnabled(true)
	}}, configure...)
	return newTestEngine(t, opts...), sink
}

func nextEvent(t *testing.T, sink *ChannelSink) AuditEvent {
	t.Helper()
	select {
	case ev := <-sink.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit event")
		return AuditEvent{}
	}
}

func TestAuditLoginAndRefreshEvents(t *testing.T) {
	te, sink := newAuditedEngine(t)
	ctx := WithUserAgent(WithClientIP(context.Background(), "203.0.113.7"), "curl/8.0")

	pair, err := te.Login(ctx, Principal{ID: "u1", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	ev := nextEvent(t, sink)
	if ev.EventType != auditEventLoginSuccess || !ev.Success || ev.UserID != "u1" {
		t.Fatalf("unexpected login event: %+v", ev)
	}
	if ev.IP != "203.0.113.7" || ev.Metadata["user_agent"] != "curl/8.0" {
		t.Fatalf("request context missing from event: %+v", ev)
	}

	if _, err := te.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if ev := nextEvent(t, sink); ev.EventType != auditEventRefreshSuccess {
		t.Fatalf("expected refresh_success, got %+v", ev)
	}

	_, _ = te.Refresh(ctx, pair.RefreshToken)
	ev = nextEvent(t, sink)
	if ev.EventType != auditEventRefreshReuseDetected || ev.Success {
		t.Fatalf("expected reuse event, got %+v", ev)
	}
	if ev.Error != string(auditErrReusedToken) || ev.Metadata["revoke_on_reuse"] != "false" {
		t.Fatalf("unexpected reuse event detail: %+v", ev)
	}
}

func TestAuditInvalidRefreshEvent(t *testing.T) {
	te, sink := newAuditedEngine(t)

	_, _ = te.Refresh(context.Background(), "not-a-token")
	ev := nextEvent(t, sink)
	if ev.EventType != auditEventRefreshInvalid || ev.Error != string(auditErrInvalidToken) {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Metadata["reason"] != "verify_failed" {
		t.Fatalf("expected verify_failed reason, got %v", ev.Metadata)
	}
}

func TestAuditLogoutEvent(t *testing.T) {
	te, sink := newAuditedEngine(t)
	pair := te.login(t, "u1")
	_ = nextEvent(t, sink)

	if err := te.Logout(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	ev := nextEvent(t, sink)
	if ev.EventType != auditEventLogout || !ev.Success || ev.Metadata["invalidated"] != "1" {
		t.Fatalf("unexpected logout event: %+v", ev)
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	sink := NewChannelSink(4)
	te := newTestEngine(t, func(b *Builder) { b.WithAuditSink(sink) })
	te.login(t, "u1")

	select {
	case ev := <-sink.Events():
		t.Fatalf("unexpected event with audit disabled: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	if te.AuditDropped() != 0 {
		t.Fatal("disabled audit must not count drops")
	}
}

func TestAuditErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{ErrReusedToken, auditErrReusedToken},
		{ErrInvalidToken, auditErrInvalidToken},
		{ErrUnknownToken, auditErrUnknownToken},
		{ErrPersistence, auditErrUnavailable},
		{ErrAccountExists, auditErrDuplicate},
	}
	for _, tt := range tests {
		if got := auditErrorCode(tt.err); got != tt.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
