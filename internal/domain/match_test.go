package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgmartin/ltdbot/internal/domain"
)

func TestParseFTScore(t *testing.T) {
	h, a, ok := domain.ParseFTScore("2-1")
	require.True(t, ok)
	assert.Equal(t, 2, h)
	assert.Equal(t, 1, a)

	h, a, ok = domain.ParseFTScore(" 0 - 0 ")
	require.True(t, ok)
	assert.Equal(t, 0, h)
	assert.Equal(t, 0, a)

	for _, bad := range []string{"", "2", "a-b", "2-", "-1"} {
		_, _, ok := domain.ParseFTScore(bad)
		assert.False(t, ok, "should reject %q", bad)
	}
}

func TestFormatFTScoreRoundTrip(t *testing.T) {
	h, a, ok := domain.ParseFTScore(domain.FormatFTScore(3, 2))
	require.True(t, ok)
	assert.Equal(t, 3, h)
	assert.Equal(t, 2, a)
}

func TestComputeResult(t *testing.T) {
	assert.Equal(t, domain.ResultDraw, domain.ComputeResult(0, 0))
	assert.Equal(t, domain.ResultDraw, domain.ComputeResult(2, 2))
	assert.Equal(t, domain.ResultDecisive, domain.ComputeResult(1, 0))
	assert.Equal(t, domain.ResultDecisive, domain.ComputeResult(0, 3))
}

func TestFavourite(t *testing.T) {
	assert.Equal(t, domain.FavHome, domain.Favourite(1.8, 4.2))
	assert.Equal(t, domain.FavAway, domain.Favourite(4.2, 1.8))
	assert.Equal(t, domain.FavEqual, domain.Favourite(2.5, 2.5))
}

func TestBandFor(t *testing.T) {
	cases := map[int]domain.Band{
		0:   15,
		15:  15,
		16:  30,
		30:  30,
		45:  45,
		46:  60,
		60:  60,
		75:  75,
		76:  90,
		90:  90,
		120: 90,
	}
	for elapsed, want := range cases {
		assert.Equal(t, want, domain.BandFor(elapsed), "elapsed=%d", elapsed)
	}
}

func TestBandIndexCoversAllBands(t *testing.T) {
	for i, b := range domain.Bands {
		assert.Equal(t, i, domain.BandIndex(b))
	}
	assert.Equal(t, -1, domain.BandIndex(domain.Band(999)))
}

func TestInplayStatus(t *testing.T) {
	assert.True(t, domain.StatusFinished.Terminal())
	assert.True(t, domain.StatusCancelled.Terminal())
	assert.True(t, domain.StatusAbandoned.Terminal())
	assert.False(t, domain.StatusInPlay.Terminal())
	assert.False(t, domain.StatusUnset.Terminal())

	assert.True(t, domain.StatusKickOff.Started())
	assert.True(t, domain.StatusInPlay.Started())
	assert.True(t, domain.StatusSecondHalfKickOff.Started())
	assert.False(t, domain.StatusFinished.Started())
	assert.False(t, domain.StatusUnset.Started())
}

func TestScorelessDraw(t *testing.T) {
	zero, one := 0, 1

	rec := domain.MatchRecord{HScore: &zero, AScore: &zero}
	assert.True(t, rec.ScorelessDraw())

	rec = domain.MatchRecord{HScore: &zero, AScore: &one}
	assert.False(t, rec.ScorelessDraw())

	rec = domain.MatchRecord{}
	assert.False(t, rec.ScorelessDraw(), "unknown score is not a scoreless draw")
}

func TestAgeSinceKickoff(t *testing.T) {
	now := time.Now().UTC()

	rec := domain.MatchRecord{}
	_, ok := rec.AgeSinceKickoff(now)
	assert.False(t, ok, "no kickoff means no age")

	future := now.Add(time.Hour)
	rec.Kickoff = &future
	_, ok = rec.AgeSinceKickoff(now)
	assert.False(t, ok, "future kickoff means no age")

	past := now.Add(-2 * time.Hour)
	rec.Kickoff = &past
	age, ok := rec.AgeSinceKickoff(now)
	require.True(t, ok)
	assert.Equal(t, 2*time.Hour, age)
}
