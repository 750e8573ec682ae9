package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ehealth-cst/ehealth-client/internal/events"
)

func TestSessionAudit_LogsEvents(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	d := events.NewInMemoryDispatcher()
	audit := StartSessionAudit(d, zap.New(core))

	ctx := context.Background()
	require.NoError(t, d.Publish(ctx, events.New(events.EventSessionLoggedOut, "u1", events.LoggedOutPayload{Reason: "refresh_failed"})))
	require.NoError(t, d.Publish(ctx, events.New(events.EventSessionMFARequired, "", events.MFARequiredPayload{Email: "a@cst.edu.bt"})))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "SessionLoggedOut", entries[0].Message)
	assert.Equal(t, "refresh_failed", entries[0].ContextMap()["reason"])
	assert.Equal(t, "SessionMFARequired", entries[1].Message)

	audit.Stop()
	require.NoError(t, d.Publish(ctx, events.New(events.EventSessionLoggedOut, "u1", events.LoggedOutPayload{Reason: "user"})))
	assert.Len(t, logs.All(), 2)
}

func TestStartSessionAudit_NilDispatcher(t *testing.T) {
	audit := StartSessionAudit(nil, nil)
	assert.NotPanics(t, audit.Stop)
}
