package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/galaxyguard/warden/automod/action"
	"github.com/galaxyguard/warden/automod/config"
	"github.com/galaxyguard/warden/automod/countstore"
	"github.com/galaxyguard/warden/automod/historystore"
	"github.com/galaxyguard/warden/automod/moderr"
	"github.com/galaxyguard/warden/automod/oracle"
	"github.com/galaxyguard/warden/automod/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// engine with every store on a shared, adjustable clock
func testEngine(scores scoring.ScoreMap) (*Engine, *time.Time) {
	now := testStart
	clock := func() time.Time { return now }
	eng := EngineTestFixture()
	eng.Now = clock
	eng.History.(*historystore.MemHistoryStore).Now = clock
	eng.Counters.(*countstore.MemCountStore).Now = clock
	if scores == nil {
		scores = scoring.ScoreMap{}
	}
	eng.Oracle = &oracle.Static{Scores: scores}
	return &eng, &now
}

func score(cat string, s float64) scoring.ScoreMap {
	return scoring.ScoreMap{{Category: cat, Score: s}}
}

// creates the user's history well outside the new-user window
func establish(t *testing.T, eng *Engine, now *time.Time, userID string) {
	saved := *now
	*now = saved.Add(-60 * 24 * time.Hour)
	_, err := eng.History.Create(context.Background(), userID)
	require.NoError(t, err)
	*now = saved
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []*Result
}

func (n *captureNotifier) SendDecision(ctx context.Context, r *Result) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, r)
	return nil
}

func TestEvaluateEmptyScores(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := testEngine(nil)

	res, err := eng.Evaluate(ctx, "hello there", scoring.Context{}, "user1")
	require.NoError(t, err)
	assert.Equal(action.Allow, res.Action)
	assert.Equal(0.0, res.Severity)
	assert.Equal("", res.Analysis.FlaggedCategory)
	assert.Nil(res.Infraction)
	assert.Equal(scoring.ChannelNormal, res.Context.ChannelType)

	// history is created lazily, with nothing in it
	h, err := eng.History.Get(ctx, "user1")
	assert.NoError(err)
	if assert.NotNil(h) {
		assert.Equal(0, h.TotalInfractions)
		assert.True(testStart.Equal(h.CreatedAt))
	}
}

func TestEvaluateValidation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := testEngine(nil)

	calls := 0
	eng.Oracle = oracle.Func(func(ctx context.Context, text string) (*oracle.Result, error) {
		calls++
		return &oracle.Result{Scores: scoring.ScoreMap{}}, nil
	})

	_, err := eng.Evaluate(ctx, "   ", scoring.Context{}, "user1")
	assert.True(moderr.Is(err, moderr.KindValidation))
	_, err = eng.Evaluate(ctx, "hello", scoring.Context{}, " ")
	assert.True(moderr.Is(err, moderr.KindValidation))
	assert.Equal(0, calls)

	_, err = eng.Evaluate(ctx, "hello", scoring.Context{}, "user1")
	assert.NoError(err)
	assert.Equal(1, calls)
}

func TestEvaluateOracleFailures(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := testEngine(nil)

	eng.Oracle = &oracle.Static{Err: errors.New("connection refused")}
	res, err := eng.Evaluate(ctx, "hello", scoring.Context{}, "user1")
	assert.Nil(res)
	assert.True(moderr.Is(err, moderr.KindDependency))

	eng.Oracle = &oracle.Static{Err: moderr.Malformed("oracle.parse", "response has no results")}
	_, err = eng.Evaluate(ctx, "hello", scoring.Context{}, "user1")
	assert.True(moderr.Is(err, moderr.KindMalformed))

	eng.Oracle = oracle.Func(func(ctx context.Context, text string) (*oracle.Result, error) {
		return nil, nil
	})
	_, err = eng.Evaluate(ctx, "hello", scoring.Context{}, "user1")
	assert.True(moderr.Is(err, moderr.KindMalformed))

	// nothing is recorded when the oracle fails
	h, err := eng.History.Get(ctx, "user1")
	assert.NoError(err)
	assert.Nil(h)
}

func TestEvaluateMissingScores(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := testEngine(nil)

	eng.Oracle = oracle.Func(func(ctx context.Context, text string) (*oracle.Result, error) {
		return &oracle.Result{Flagged: true}, nil
	})
	res, err := eng.Evaluate(ctx, "hello", scoring.Context{}, "user1")
	assert.Nil(res)
	assert.True(moderr.Is(err, moderr.KindMalformed))

	// a static oracle with nothing configured (eg, a "null" scores file) is not an allow-everything oracle
	eng.Oracle = &oracle.Static{}
	_, err = eng.Evaluate(ctx, "hello", scoring.Context{}, "user1")
	assert.True(moderr.Is(err, moderr.KindMalformed))

	// an empty score map is a legitimate "nothing flagged"
	eng.Oracle = &oracle.Static{Scores: scoring.ScoreMap{}}
	res, err = eng.Evaluate(ctx, "hello", scoring.Context{}, "user1")
	require.NoError(t, err)
	assert.Equal(action.Allow, res.Action)
}

func TestEvaluateUnknownCategory(t *testing.T) {
	eng, _ := testEngine(score("weather", 0.9))
	_, err := eng.Evaluate(context.Background(), "it is raining", scoring.Context{}, "user1")
	assert.True(t, moderr.Is(err, moderr.KindConfiguration))
}

func TestEvaluateRecordsInfraction(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, now := testEngine(scoring.ScoreMap{
		{Category: "sexual", Score: 0.01},
		{Category: "harassment", Score: 0.35},
		{Category: "harassment/threatening", Score: 0.2},
	})
	establish(t, eng, now, "user1")

	res, err := eng.Evaluate(ctx, "you are awful", scoring.Context{ChannelID: "general"}, "user1")
	require.NoError(t, err)
	assert.Equal(action.Warn, res.Action)
	assert.Equal(action.Warn, res.BaseAction)
	assert.False(res.Escalated)
	assert.Equal(0.35, res.Severity)
	assert.Equal(0.35, res.AdjustedSeverity)
	assert.Empty(res.Modifiers)
	// below the category's own low threshold, but enough for a warning
	assert.Equal(scoring.TierNone, res.Analysis.Categories["harassment"])
	assert.Equal(config.Window(0), res.Duration)

	require.NotNil(t, res.Infraction)
	inf := res.Infraction
	assert.NotEmpty(inf.ID)
	assert.Equal(action.Warn, inf.Type)
	assert.Equal("harassment", inf.Category)
	assert.Equal(0.35, inf.Severity)
	assert.Equal("you are awful", inf.Content)
	assert.Equal("general", inf.Context.ChannelID)
	assert.True(testStart.Equal(inf.Timestamp))
	assert.True(testStart.Add(30 * 24 * time.Hour).Equal(inf.DecayAt))

	h, err := eng.History.Get(ctx, "user1")
	assert.NoError(err)
	assert.Equal(1, h.TotalInfractions)
}

func TestEvaluateEscalation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, now := testEngine(score("harassment", 0.35))
	establish(t, eng, now, "user1")

	for i := 0; i < 3; i++ {
		res, err := eng.Evaluate(ctx, "you are awful", scoring.Context{}, "user1")
		require.NoError(t, err)
		assert.Equal(action.Warn, res.Action)
		*now = now.Add(time.Hour)
	}

	// fourth warning in a week
	res, err := eng.Evaluate(ctx, "you are awful", scoring.Context{}, "user1")
	require.NoError(t, err)
	assert.Equal(action.Warn, res.BaseAction)
	assert.Equal(action.Mute, res.Action)
	assert.True(res.Escalated)
	assert.Equal(config.Window(24*time.Hour), res.Duration)
	assert.Equal(action.Mute, res.Infraction.Type)
	assert.Greater(res.StrikeWeight, 1.0)

	// after the window has passed, warnings start over
	*now = now.Add(8 * 24 * time.Hour)
	res, err = eng.Evaluate(ctx, "you are awful", scoring.Context{}, "user1")
	require.NoError(t, err)
	assert.Equal(action.Warn, res.Action)

	st, err := eng.Standing(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(5, st.History.TotalInfractions)
	assert.Equal(1, st.RecentWarns)
	assert.Equal(1, st.RecentMutes)
	assert.False(st.IsNewUser)
}

func TestEvaluateReviewLogging(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, now := testEngine(score("spam", 0.15))
	establish(t, eng, now, "user1")

	res, err := eng.Evaluate(ctx, "check out my stream", scoring.Context{}, "user1")
	require.NoError(t, err)
	assert.Equal(action.Review, res.Action)
	assert.Nil(res.Infraction)

	eng.Config.LogReview = true
	res, err = eng.Evaluate(ctx, "check out my stream", scoring.Context{}, "user1")
	require.NoError(t, err)
	assert.Equal(action.Review, res.Action)
	assert.NotNil(res.Infraction)

	h, err := eng.History.Get(ctx, "user1")
	assert.NoError(err)
	assert.Equal(1, h.TotalInfractions)
}

func TestEvaluateContextModifiers(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	// sensitive channel from the set store
	eng, now := testEngine(score("harassment", 0.45))
	establish(t, eng, now, "user1")
	res, err := eng.Evaluate(ctx, "msg", scoring.Context{ChannelID: "support"}, "user1")
	require.NoError(t, err)
	assert.Equal(scoring.ChannelSensitive, res.Context.ChannelType)
	assert.InDelta(0.54, res.AdjustedSeverity, 1e-9)
	assert.Equal(action.Mute, res.Action)
	assert.Equal([]string{"sensitive-channel"}, res.Modifiers)
	// the infraction keeps the oracle's score; modifiers are not compounded in to strike weight
	require.NotNil(t, res.Infraction)
	assert.Equal(0.45, res.Infraction.Severity)

	// an explicit channel type wins over the set store
	res, err = eng.Evaluate(ctx, "msg", scoring.Context{ChannelID: "support", ChannelType: scoring.ChannelNormal}, "user2")
	require.NoError(t, err)
	assert.Equal(scoring.ChannelNormal, res.Context.ChannelType)

	// new user
	eng, _ = testEngine(score("harassment", 0.28))
	res, err = eng.Evaluate(ctx, "msg", scoring.Context{}, "newbie")
	require.NoError(t, err)
	assert.InDelta(0.308, res.AdjustedSeverity, 1e-9)
	assert.Equal(action.Warn, res.Action)
	assert.Equal([]string{"new-user"}, res.Modifiers)

	// trusted user
	eng, now = testEngine(score("harassment", 0.32))
	establish(t, eng, now, "regular")
	_, err = eng.SetTrustScore(ctx, "regular", 80)
	require.NoError(t, err)
	res, err = eng.Evaluate(ctx, "msg", scoring.Context{}, "regular")
	require.NoError(t, err)
	assert.InDelta(0.256, res.AdjustedSeverity, 1e-9)
	assert.Equal(action.Review, res.Action)
	assert.Equal([]string{"trusted-user"}, res.Modifiers)
}

func TestEvaluateHighActivity(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, now := testEngine(nil)
	eng.Config.Activity.MessagesPerHour = 4
	establish(t, eng, now, "user1")

	for i := 0; i < 3; i++ {
		res, err := eng.Evaluate(ctx, "hi", scoring.Context{ChannelID: "general"}, "user1")
		require.NoError(t, err)
		assert.False(res.Context.IsHighActivity)
	}

	eng.Oracle = &oracle.Static{Scores: score("harassment", 0.28)}
	res, err := eng.Evaluate(ctx, "msg", scoring.Context{ChannelID: "general"}, "user1")
	require.NoError(t, err)
	assert.True(res.Context.IsHighActivity)
	assert.InDelta(0.322, res.AdjustedSeverity, 1e-9)
	assert.Equal(action.Warn, res.Action)

	// other channels are unaffected
	res, err = eng.Evaluate(ctx, "msg", scoring.Context{ChannelID: "quiet"}, "user1")
	require.NoError(t, err)
	assert.False(res.Context.IsHighActivity)
	assert.Equal(action.Review, res.Action)
}

func TestEvaluateCumulativePolicy(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := testEngine(scoring.ScoreMap{
		{Category: "sexual", Score: 0.25},
		{Category: "hate", Score: 0.25},
		{Category: "violence", Score: 0.25},
	})
	eng.Policy = PolicyCumulative

	res, err := eng.Evaluate(ctx, "msg", scoring.Context{}, "user1")
	require.NoError(t, err)
	assert.Equal(PolicyCumulative, res.Policy)
	assert.Equal(action.Warn, res.Action)
	assert.InDelta(0.25, res.Summary.NormalizedCumulativeScore, 1e-9)
	require.NotNil(t, res.Infraction)
	assert.Equal("sexual", res.Infraction.Category)
}

func TestEvaluateScores(t *testing.T) {
	assert := assert.New(t)
	eng, _ := testEngine(nil)

	res := eng.EvaluateScores(scoring.ScoreMap{
		{Category: "sexual", Score: 0.25},
		{Category: "hate", Score: 0.25},
		{Category: "violence", Score: 0.25},
	})
	assert.Equal(action.Warn, res.Action)
	assert.Equal("sexual", res.HighestCategory)
	assert.Equal(0.25, res.HighestSeverity)
	assert.InDelta(0.25, res.CumulativeScore, 1e-9)

	res = eng.EvaluateScores(nil)
	assert.Equal(CumulativeResult{Action: action.Allow}, res)

	res = eng.EvaluateScores(score("hate", 0.95))
	assert.Equal(action.Ban, res.Action)

	res = eng.EvaluateScores(scoring.ScoreMap{{Category: "hate", Score: 0}, {Category: "spam", Score: 0}})
	assert.Equal("", res.HighestCategory)
	assert.Equal(action.Allow, res.Action)
}

func TestEvaluateScoresFor(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := testEngine(nil)

	strict := config.Override{Individual: &config.ScoreLadder{Warn: 0.1, Delete: 0.2, Mute: 0.3, Ban: 0.4}}
	require.NoError(t, eng.PutSettings(ctx, "strict", strict))

	res, err := eng.EvaluateScoresFor(ctx, "strict", score("hate", 0.35))
	assert.NoError(err)
	assert.Equal(action.Mute, res.Action)

	// a single category's normalized score equals its score, which passes the global cumulative delete threshold
	res, err = eng.EvaluateScoresFor(ctx, "someone-else", score("hate", 0.35))
	assert.NoError(err)
	assert.Equal(action.Delete, res.Action)

	// overrides which break threshold ordering are rejected
	bad := config.Override{Individual: &config.ScoreLadder{Warn: 0.5, Delete: 0.2, Mute: 0.3, Ban: 0.4}}
	err = eng.PutSettings(ctx, "strict", bad)
	assert.True(moderr.Is(err, moderr.KindValidation))
}

func TestEvaluateNotifications(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, _ := testEngine(score("violence", 0.95))
	n := &captureNotifier{}
	eng.Notifier = n

	res, err := eng.Evaluate(ctx, "msg", scoring.Context{}, "user1")
	require.NoError(t, err)
	assert.Equal(action.PermBan, res.Action)
	assert.Len(n.sent, 1)

	// below the notification level
	eng.Oracle = &oracle.Static{Scores: score("violence", 0.35)}
	_, err = eng.Evaluate(ctx, "msg", scoring.Context{}, "user2")
	require.NoError(t, err)
	assert.Len(n.sent, 1)

	// daily quota
	eng.Oracle = &oracle.Static{Scores: score("violence", 0.95)}
	for i := 0; i < QuotaNotifyDay+5; i++ {
		_, err = eng.Evaluate(ctx, "msg", scoring.Context{}, "user3")
		require.NoError(t, err)
	}
	assert.Len(n.sent, QuotaNotifyDay)
}

func TestEvaluateConcurrentAppends(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, now := testEngine(score("spam", 0.65))
	establish(t, eng, now, "user1")

	n := 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Evaluate(ctx, "buy followers", scoring.Context{}, "user1")
			assert.NoError(err)
		}()
	}
	wg.Wait()

	h, err := eng.History.Get(ctx, "user1")
	assert.NoError(err)
	assert.Equal(n, h.TotalInfractions)
	assert.Len(h.Infractions, n)
}

func TestAdminOperations(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, now := testEngine(score("harassment", 0.35))

	st, err := eng.Standing(ctx, "nobody")
	assert.NoError(err)
	assert.Nil(st)

	_, err = eng.SetTrustScore(ctx, "user1", -1)
	assert.True(moderr.Is(err, moderr.KindValidation))

	for _, user := range []string{"user1", "user2"} {
		_, err := eng.Evaluate(ctx, "msg", scoring.Context{}, user)
		require.NoError(t, err)
		*now = now.Add(time.Minute)
	}

	recent, err := eng.RecentHistories(ctx, 0)
	assert.NoError(err)
	if assert.Len(recent, 2) {
		assert.Equal("user2", recent[0].UserID)
	}

	assert.NoError(eng.ClearInfractions(ctx, "user1"))
	st, err = eng.Standing(ctx, "user1")
	assert.NoError(err)
	assert.Equal(0, st.History.TotalInfractions)
	assert.Equal(0.0, st.StrikeWeight)

	assert.True(moderr.Is(eng.ClearInfractions(ctx, ""), moderr.KindValidation))
}
