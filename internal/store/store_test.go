package store

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nexus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndRecentLogs(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AppendLog("DEV", "first", types.KindUser, "")
	require.NoError(t, err)
	_, err = s.AppendLog("DEV", "second", types.KindGemini, "")
	require.NoError(t, err)
	_, err = s.AppendLog("TRADING", "other channel", types.KindSystem, "")
	require.NoError(t, err)

	entries, err := s.RecentLogs("DEV", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Message)
	assert.Equal(t, "second", entries[1].Message)
	assert.Equal(t, types.KindGemini, entries[1].Kind)
}

func TestRecentLogsWindow(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 20; i++ {
		_, err := s.AppendLog("CENTRAL", "msg", types.KindUser, "")
		require.NoError(t, err)
	}

	entries, err := s.RecentLogs("CENTRAL", 8)
	require.NoError(t, err)
	assert.Len(t, entries, 8)
}

func TestSeedReputationIdempotent(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SeedReputation())

	_, err := s.AdjustReputation(types.DeptDev, 5)
	require.NoError(t, err)

	// A second seed must not reset accumulated scores.
	require.NoError(t, s.SeedReputation())

	r, err := s.GetReputation(types.DeptDev)
	require.NoError(t, err)
	assert.Equal(t, 55, r.Score)

	all, err := s.AllReputation()
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, types.DeptCentral, all[0].Department)
	assert.Equal(t, 50, all[0].Score)
}

func TestAdjustReputationClampAndStreak(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SeedReputation())

	r, err := s.AdjustReputation(types.DeptTrading, 3)
	require.NoError(t, err)
	assert.Equal(t, 53, r.Score)
	assert.Equal(t, 1, r.Streak)

	r, err = s.AdjustReputation(types.DeptTrading, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Streak)

	r, err = s.AdjustReputation(types.DeptTrading, -2)
	require.NoError(t, err)
	assert.Equal(t, 56, r.Score)
	assert.Equal(t, 0, r.Streak, "negative delta resets streak")

	r, err = s.AdjustReputation(types.DeptTrading, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, r.Score, "clamped high")

	r, err = s.AdjustReputation(types.DeptTrading, -500)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Score, "clamped low")
	assert.Equal(t, 0, r.Streak)
}

func TestAdjustReputationRandomSequenceStaysInRange(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SeedReputation())

	rng := rand.New(rand.NewSource(42))
	streak := 0
	for i := 0; i < 300; i++ {
		delta := rng.Intn(15) - 7
		r, err := s.AdjustReputation(types.DeptInfra, delta)
		require.NoError(t, err)
		require.GreaterOrEqual(t, r.Score, 0)
		require.LessOrEqual(t, r.Score, 100)
		if delta > 0 {
			streak++
		} else {
			streak = 0
		}
		require.Equal(t, streak, r.Streak)
	}
}

func TestGetReputationUnknownDept(t *testing.T) {
	s := newTestStore(t)
	// No seed: every department is unknown.
	_, err := s.GetReputation(types.DeptDev)
	assert.ErrorIs(t, err, ErrUnknownDepartment)
}

func TestCreateMissionAbortsPriorActive(t *testing.T) {
	s := newTestStore(t)

	first := types.Mission{ID: uuid.NewString(), Channel: "DEV", Goal: "ship v1", Tasks: []string{"plan", "build"}}
	require.NoError(t, s.CreateMission(first))

	second := types.Mission{ID: uuid.NewString(), Channel: "DEV", Goal: "ship v2", Tasks: []string{"design"}}
	require.NoError(t, s.CreateMission(second))

	active, err := s.ActiveMission("DEV")
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
	assert.Equal(t, types.MissionActive, active.Status)

	// Prior row is aborted, never deleted.
	n, err := s.CountMissions("DEV")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestActiveMissionNone(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ActiveMission("INFRA")
	assert.ErrorIs(t, err, ErrNoActiveMission)
}

func TestUpdateMissionRoundTrip(t *testing.T) {
	s := newTestStore(t)

	m := types.Mission{ID: uuid.NewString(), Channel: "TRADING", Goal: "scalp", Tasks: []string{"watch", "enter", "exit"}}
	require.NoError(t, s.CreateMission(m))

	active, err := s.ActiveMission("TRADING")
	require.NoError(t, err)

	active.Step = 7 // out of range is legal; reads report Unknown
	active.Memo = "note"
	require.NoError(t, s.UpdateMission(active))

	got, err := s.ActiveMission("TRADING")
	require.NoError(t, err)
	assert.Equal(t, 7, got.Step)
	assert.Equal(t, "Unknown", got.CurrentTask())
	assert.Equal(t, "note", got.Memo)
	assert.Equal(t, []string{"watch", "enter", "exit"}, got.Tasks)
}

func TestUpdateMissionMissingRow(t *testing.T) {
	s := newTestStore(t)
	m := &types.Mission{ID: "nope", Status: types.MissionActive}
	assert.ErrorIs(t, s.UpdateMission(m), ErrNoActiveMission)
}

func TestCredentialsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Credentials("DEV")
	require.NoError(t, err)
	assert.Nil(t, got)

	c := types.Credentials{Channel: "DEV", Service: "github", Login: "nexus-bot", Password: "hunter2", Notes: "2fa off"}
	require.NoError(t, s.SaveCredentials(c))

	got, err = s.Credentials("DEV")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "github", got.Service)

	c.Password = "rotated"
	require.NoError(t, s.SaveCredentials(c))
	got, err = s.Credentials("DEV")
	require.NoError(t, err)
	assert.Equal(t, "rotated", got.Password)
}
