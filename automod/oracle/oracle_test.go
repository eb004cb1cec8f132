package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/galaxyguard/warden/automod/moderr"
	"github.com/galaxyguard/warden/automod/scoring"
	"github.com/galaxyguard/warden/util"

	"github.com/stretchr/testify/assert"
)

var sampleResponse = `{
  "id": "modr-123",
  "model": "omni-moderation-latest",
  "results": [
    {
      "flagged": true,
      "categories": {"sexual": false, "hate": true, "harassment": true, "hate/threatening": false},
      "category_scores": {"sexual": 0.01, "hate": 0.82, "harassment": 0.82, "hate/threatening": 0.3}
    }
  ]
}`

func testClient(srv *httptest.Server) *OpenAIClient {
	c := NewOpenAIClient(srv.URL, "sk-test", 0)
	c.Client = util.NewHTTPClient(util.HTTPClientOptions{
		RetryMax:     2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
		Timeout:      5 * time.Second,
	})
	return c
}

func TestParseModerationResponse(t *testing.T) {
	assert := assert.New(t)

	res, err := ParseModerationResponse([]byte(sampleResponse))
	assert.NoError(err)
	assert.True(res.Flagged)
	assert.True(res.Categories["hate"])
	assert.False(res.Categories["sexual"])
	assert.Equal(scoring.ScoreMap{
		{Category: "sexual", Score: 0.01},
		{Category: "hate", Score: 0.82},
		{Category: "harassment", Score: 0.82},
		{Category: "hate/threatening", Score: 0.3},
	}, res.Scores)

	for _, raw := range []string{
		`not json`,
		`{}`,
		`{"results": []}`,
		`{"results": [{"flagged": false}]}`,
		`{"results": [{"category_scores": {"hate": "high"}}]}`,
	} {
		_, err := ParseModerationResponse([]byte(raw))
		assert.True(moderr.Is(err, moderr.KindMalformed), raw)
	}
}

func TestOpenAIClassify(t *testing.T) {
	assert := assert.New(t)

	var gotAuth, gotInput string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/v1/moderations", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		var req moderationRequest
		assert.NoError(json.NewDecoder(r.Body).Decode(&req))
		gotInput = req.Input
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	res, err := testClient(srv).Classify(context.Background(), "you are terrible")
	assert.NoError(err)
	assert.Equal("Bearer sk-test", gotAuth)
	assert.Equal("you are terrible", gotInput)
	assert.Len(res.Scores, 4)

	_, err = testClient(srv).Classify(context.Background(), "   ")
	assert.True(moderr.Is(err, moderr.KindValidation))
}

func TestOpenAIRetriesThenSucceeds(t *testing.T) {
	assert := assert.New(t)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("x-ratelimit-reset-requests", "1ms")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	res, err := testClient(srv).Classify(context.Background(), "hello")
	assert.NoError(err)
	assert.NotNil(res)
	assert.Equal(int32(2), hits.Load())
}

func TestOpenAIFailures(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()
	_, err := testClient(srv).Classify(context.Background(), "hello")
	assert.True(moderr.Is(err, moderr.KindDependency))

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": [{"flagged": true}]}`))
	}))
	defer bad.Close()
	_, err = testClient(bad).Classify(context.Background(), "hello")
	assert.True(moderr.Is(err, moderr.KindMalformed))

	unauthorized := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer unauthorized.Close()
	_, err = testClient(unauthorized).Classify(context.Background(), "hello")
	assert.True(moderr.Is(err, moderr.KindDependency))
}

func TestStatic(t *testing.T) {
	assert := assert.New(t)

	s := &Static{Scores: scoring.ScoreMap{{Category: "spam", Score: 0.7}}}
	res, err := s.Classify(context.Background(), "buy now")
	assert.NoError(err)
	assert.Equal(0.7, res.Scores[0].Score)

	// results are copies
	res.Scores[0].Score = 0
	assert.Equal(0.7, s.Scores[0].Score)

	s.Err = errors.New("down")
	_, err = s.Classify(context.Background(), "buy now")
	assert.Error(err)
}
