package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medavatar/pkg/model"
)

func TestMemoryStoreHealthRoundTrip(t *testing.T) {
	st := NewMemoryStore()

	_, ok, err := st.LatestHealth()
	require.NoError(t, err)
	assert.False(t, ok)

	h := model.SystemHealth{UptimeSeconds: 42}
	h.Database.Healthy = true
	require.NoError(t, st.SaveHealth(h))

	got, ok, err := st.LatestHealth()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, h, got)
}

func TestMemoryStoreServiceHealthCopies(t *testing.T) {
	st := NewMemoryStore()
	in := map[string]model.ServiceHealth{
		"avatar": {Status: model.ServiceOnline, ResponseTimeMs: 100},
	}
	require.NoError(t, st.SaveServiceHealth(in))

	// mutating the caller's map must not leak into the store
	in["avatar"] = model.ServiceHealth{Status: model.ServiceOffline}

	out, err := st.GetServiceHealth()
	require.NoError(t, err)
	assert.Equal(t, model.ServiceOnline, out["avatar"].Status)
}

func TestMemoryStoreIssueRetention(t *testing.T) {
	st := NewMemoryStore()
	now := time.Now()

	old := model.Issue{Type: model.IssueDatabase, Timestamp: now.Add(-2 * time.Hour)}
	recent := model.Issue{Type: model.IssueMemory, Timestamp: now.Add(-10 * time.Minute)}
	require.NoError(t, st.AppendIssue(old))
	require.NoError(t, st.AppendIssue(recent))
	// appending prunes anything past retention
	require.NoError(t, st.AppendIssue(model.Issue{Type: model.IssueNetwork, Timestamp: now}))

	issues, err := st.ListIssues(0)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, model.IssueMemory, issues[0].Type)
	assert.Equal(t, model.IssueNetwork, issues[1].Type)
}

func TestMemoryStoreListLimit(t *testing.T) {
	st := NewMemoryStore()
	now := time.Now()
	for _, typ := range []model.IssueType{model.IssueDatabase, model.IssueMemory, model.IssueNetwork} {
		require.NoError(t, st.AppendIssue(model.Issue{Type: typ, Timestamp: now}))
	}

	issues, err := st.ListIssues(2)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, model.IssueMemory, issues[0].Type)
	assert.Equal(t, model.IssueNetwork, issues[1].Type)
}
