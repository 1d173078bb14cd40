package matchstate

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitchsense/pitchsense-engine/internal/baseline"
	"github.com/pitchsense/pitchsense-engine/internal/pressure"
	"github.com/pitchsense/pitchsense-engine/internal/roster"
	"github.com/pitchsense/pitchsense-engine/internal/workload"
)

func testState(t *testing.T, cfg Config) *State {
	t.Helper()
	ros := roster.New([]roster.Player{
		{ID: "bowl1", Name: "Arjun Patel", Role: roster.RoleFastBowler},
		{ID: "bowl2", Name: "Dev Sharma Jr", Role: roster.RoleSpinner},
		{ID: "bat1", Name: "Kiran Rao", Role: roster.RoleBatter},
	})
	return New(cfg, ros, pressure.NewEngine(), nil)
}

func legalBall(bowler, batter string, runs int) BallEvent {
	return BallEvent{BowlerID: bowler, BatterID: batter, Runs: runs}
}

func TestApplyBallAccumulatesScore(t *testing.T) {
	s := testState(t, Config{Format: workload.FormatT20})

	_, err := s.ApplyBall(legalBall("bowl1", "bat1", 4))
	require.NoError(t, err)
	_, err = s.ApplyBall(BallEvent{BowlerID: "bowl1", BatterID: "bat1", Runs: 0, Wicket: true})
	require.NoError(t, err)
	_, err = s.ApplyBall(BallEvent{BowlerID: "bowl1", BatterID: "bat1", Extras: 1, Wide: true})
	require.NoError(t, err)

	mc := s.MatchContext()
	assert.Equal(t, 5, mc.Score)
	assert.Equal(t, 1, mc.WicketsDown)
	// The wide is not a legal delivery.
	assert.Equal(t, 120-2, mc.BallsRemaining)
}

func TestOverCompletionChargesFatigue(t *testing.T) {
	s := testState(t, Config{Format: workload.FormatT20})

	for i := 0; i < 6; i++ {
		_, err := s.ApplyBall(legalBall("bowl1", "bat1", 1))
		require.NoError(t, err)
	}

	snap, err := s.Snapshot("bowl1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap.OversBowled)
	assert.Equal(t, 1.0, snap.SpellLength)
	assert.InDelta(t, overFatigueFast, snap.Fatigue, 1e-9)
}

func TestIdleBowlerSpellResets(t *testing.T) {
	s := testState(t, Config{Format: workload.FormatT20})

	for i := 0; i < 6; i++ {
		_, err := s.ApplyBall(legalBall("bowl1", "bat1", 0))
		require.NoError(t, err)
	}
	// Two full overs from the other end.
	for i := 0; i < 12; i++ {
		_, err := s.ApplyBall(legalBall("bowl2", "bat1", 0))
		require.NoError(t, err)
	}

	snap, err := s.Snapshot("bowl1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap.OversBowled, "career overs survive the rest")
	assert.Equal(t, 0.0, snap.SpellLength, "spell resets after idle overs")
}

func TestNoBallSignals(t *testing.T) {
	s := testState(t, Config{Format: workload.FormatT20})

	_, err := s.ApplyBall(BallEvent{BowlerID: "bowl1", BatterID: "bat1", Extras: 1, NoBall: true})
	require.NoError(t, err)

	sig, err := s.Signals("bowl1")
	require.NoError(t, err)
	assert.True(t, sig.RecentNoBallOrWide)
	assert.False(t, sig.NoBallTrendUp, "one extra is not a trend")

	_, err = s.ApplyBall(BallEvent{BowlerID: "bowl1", BatterID: "bat1", Extras: 1, NoBall: true})
	require.NoError(t, err)
	sig, err = s.Signals("bowl1")
	require.NoError(t, err)
	assert.True(t, sig.NoBallTrendUp)
}

func TestPhaseProgressionT20(t *testing.T) {
	s := testState(t, Config{Format: workload.FormatT20})
	assert.Equal(t, workload.PhasePowerplay, s.MatchContext().Phase)

	for i := 0; i < 36; i++ {
		_, err := s.ApplyBall(legalBall("bowl1", "bat1", 0))
		require.NoError(t, err)
	}
	assert.Equal(t, workload.PhaseMiddle, s.MatchContext().Phase)

	for i := 0; i < 60; i++ {
		_, err := s.ApplyBall(legalBall("bowl2", "bat1", 0))
		require.NoError(t, err)
	}
	assert.Equal(t, workload.PhaseDeath, s.MatchContext().Phase)
}

func TestRequiredRunRate(t *testing.T) {
	s := testState(t, Config{Format: workload.FormatT20, Innings: 2, TargetScore: 180})

	// 60 balls, 60 runs: 120 needed off 60 balls = 12 per over.
	for i := 0; i < 60; i++ {
		_, err := s.ApplyBall(legalBall("bowl1", "bat1", 1))
		require.NoError(t, err)
	}
	mc := s.MatchContext()
	assert.InDelta(t, 12.0, mc.RequiredRunRate, 1e-9)
	assert.InDelta(t, 6.0, mc.CurrentRunRate, 1e-9)
}

func TestPressureTracksActiveBatter(t *testing.T) {
	s := testState(t, Config{Format: workload.FormatT20, Innings: 2, TargetScore: 180})
	require.NoError(t, s.SetActiveBatter("bat1"))

	var last pressure.State
	for i := 0; i < 12; i++ {
		st, err := s.ApplyBall(legalBall("bowl1", "bat1", 0))
		require.NoError(t, err)
		last = st
	}
	assert.Equal(t, "bat1", last.PlayerID)
	assert.GreaterOrEqual(t, last.Displayed, 0.0)
	assert.LessOrEqual(t, last.Displayed, 10.0)
	assert.Greater(t, last.Displayed, 2.0, "a stalled chase keeps pressure above the floor")
}

func TestSwitchingBatterResetsOutgoingState(t *testing.T) {
	s := testState(t, Config{Format: workload.FormatT20})
	require.NoError(t, s.SetActiveBatter("bat1"))
	_, err := s.ApplyBall(legalBall("bowl1", "bat1", 1))
	require.NoError(t, err)

	require.NoError(t, s.SetActiveBatter("bowl2"))
	st := s.Pressure()
	assert.Equal(t, "", st.PlayerID, "new batter has no state until the next event")
}

func TestTickRecoversRestingBowlers(t *testing.T) {
	s := testState(t, Config{Format: workload.FormatT20})
	require.NoError(t, s.UpdateTelemetry("bowl2", 5, 0, 80, 80, 80))

	// bowl1 is mid-over; bowl2 rests.
	_, err := s.ApplyBall(legalBall("bowl1", "bat1", 0))
	require.NoError(t, err)
	s.Tick()

	snap, err := s.Snapshot("bowl2")
	require.NoError(t, err)
	assert.InDelta(t, 5-restTickRelief, snap.Fatigue, 1e-9)
}

func TestBuildRequestAssemblesTelemetry(t *testing.T) {
	s := testState(t, Config{Format: workload.FormatT20, Innings: 2, TargetScore: 150})
	s.SeedBaseline(baseline.Baseline{PlayerID: "bowl1", Role: roster.RoleFastBowler, FatigueLimit: 6, SleepHours: 7, RecoveryMinutes: 90, Fit: true})
	require.NoError(t, s.UpdateTelemetry("bowl1", 7, 6, 70, 85, 80))

	req, err := s.BuildRequest("bowl1", "over 12")
	require.NoError(t, err)

	assert.Equal(t, roster.TeamModeBowling, req.TeamMode)
	assert.Equal(t, roster.RoleFastBowler, req.FocusRole)
	assert.Equal(t, 7.0, req.Telemetry.Workload.Fatigue)
	assert.Equal(t, 6.0, req.Telemetry.Workload.FatigueLimit)
	require.NotNil(t, req.Baseline)
	assert.Equal(t, "bowl1", req.Baseline.PlayerID)
	assert.Len(t, req.Players, 3)
	assert.GreaterOrEqual(t, req.Signals.Fatigue, 6.0, "fatigue trigger must fire for the router")
}

// An unlimited-format innings has no per-bowler over cap; the request built
// from it must still serialize for the analyzer wire.
func TestUnlimitedFormatRequestSerializes(t *testing.T) {
	s := testState(t, Config{Format: workload.FormatUnlimited, Innings: 1, BallsTotal: 540})

	// A long spell, well past any limited-overs cap.
	for i := 0; i < 11*6; i++ {
		_, err := s.ApplyBall(legalBall("bowl1", "bat1", 0))
		require.NoError(t, err)
	}

	snap, err := s.Snapshot("bowl1")
	require.NoError(t, err)
	assert.Equal(t, 11.0, snap.OversBowled, "uncapped overs must not clamp")
	assert.Equal(t, 0.0, snap.MaxOvers)
	assert.Equal(t, workload.PhaseMiddle, snap.Phase)

	req, err := s.BuildRequest("bowl1", "")
	require.NoError(t, err)
	raw, err := json.Marshal(req)
	require.NoError(t, err, "analysis request must be JSON-encodable")
	assert.NotContains(t, string(raw), "Inf")
}

func TestUnknownPlayersRejected(t *testing.T) {
	s := testState(t, Config{Format: workload.FormatT20})

	_, err := s.ApplyBall(legalBall("ghost", "bat1", 0))
	assert.True(t, errors.Is(err, ErrUnknownPlayer))

	_, err = s.ApplyBall(legalBall("bowl1", "ghost", 0))
	assert.True(t, errors.Is(err, ErrUnknownPlayer))

	assert.Error(t, s.SetActiveBatter("ghost"))
	assert.Error(t, s.UpdateTelemetry("ghost", 1, 1, 1, 1, 1))
}

func TestInningsEndsAtBallLimit(t *testing.T) {
	s := testState(t, Config{Format: workload.FormatT20, BallsTotal: 6})
	for i := 0; i < 6; i++ {
		_, err := s.ApplyBall(legalBall("bowl1", "bat1", 0))
		require.NoError(t, err)
	}
	_, err := s.ApplyBall(legalBall("bowl1", "bat1", 0))
	assert.True(t, errors.Is(err, ErrInningsOver))
}
