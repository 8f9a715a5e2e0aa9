package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"consentstate/internal/consentstate/models"
	dErrors "consentstate/pkg/domain-errors"
	"consentstate/pkg/platform/sentinel"
)

const testKey = "cookie-consent"

type stubReader struct {
	values map[string]string
	err    error
	calls  int
}

func (r *stubReader) Get(_ context.Context, key string) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	v, ok := r.values[key]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return v, nil
}

type ResolverSuite struct {
	suite.Suite
	ctx    context.Context
	reader *stubReader
	logs   *bytes.Buffer
	res    *Resolver
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.ctx = context.Background()
	s.reader = &stubReader{values: map[string]string{}}
	s.logs = &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(s.logs, nil))
	s.res = New(s.reader, testKey, WithLogger(logger))
}

func (s *ResolverSuite) store(raw string) {
	s.reader.values[testKey] = raw
}

func (s *ResolverSuite) resolve(hash string) (models.ResolvedState, models.Outcome) {
	state, outcome, err := s.res.Resolve(s.ctx, hash)
	s.Require().NoError(err)
	return state, outcome
}

func (s *ResolverSuite) assertJSON(expected string, state models.ResolvedState) {
	out, err := json.Marshal(state)
	s.Require().NoError(err)
	s.JSONEq(expected, string(out))
}

func (s *ResolverSuite) TestScenarios() {
	s.Run("nothing stored shows the banner", func() {
		state, outcome := s.resolve("v2")
		s.Equal(models.OutcomeAbsent, outcome)
		s.assertJSON(`{"consent":[],"isBannerVisible":true,"isDetailsVisible":false}`, state)
	})

	s.Run("current hash hides the banner and returns stored consent", func() {
		s.store(`{"consent":[{"id":"analytics","granted":true}],"hash":"v2"}`)
		state, outcome := s.resolve("v2")
		s.Equal(models.OutcomeCurrent, outcome)
		s.assertJSON(`{"consent":[{"id":"analytics","granted":true}],"isBannerVisible":false,"isDetailsVisible":false}`, state)
	})

	s.Run("stale hash shows the banner and keeps stored consent", func() {
		s.store(`{"consent":[{"id":"analytics","granted":true}],"hash":"v1"}`)
		state, outcome := s.resolve("v2")
		s.Equal(models.OutcomeStale, outcome)
		s.assertJSON(`{"consent":[{"id":"analytics","granted":true}],"isBannerVisible":true,"isDetailsVisible":false}`, state)
	})

	s.Run("missing consent field yields empty consent", func() {
		s.store(`{"hash":"v2"}`)
		state, outcome := s.resolve("v2")
		s.Equal(models.OutcomeCurrent, outcome)
		s.assertJSON(`{"consent":[],"isBannerVisible":false,"isDetailsVisible":false}`, state)
	})
}

func (s *ResolverSuite) TestEdgeCases() {
	s.Run("empty stored string is absent", func() {
		s.store("")
		state, outcome := s.resolve("v2")
		s.Equal(models.OutcomeAbsent, outcome)
		s.Equal(models.DefaultState(), state)
	})

	s.Run("empty consent array returns a fresh empty sequence", func() {
		s.store(`{"consent":[],"hash":"v2"}`)
		state, _ := s.resolve("v2")
		s.NotNil(state.Consent)
		s.Empty(state.Consent)
		s.False(state.IsBannerVisible)
	})

	s.Run("null hash forces the banner", func() {
		s.store(`{"consent":["a"],"hash":null}`)
		state, outcome := s.resolve("v2")
		s.Equal(models.OutcomeStale, outcome)
		s.True(state.IsBannerVisible)
		s.Len(state.Consent, 1)
	})

	s.Run("missing hash never matches an empty expected hash", func() {
		s.store(`{"consent":["a"]}`)
		state, _ := s.resolve("")
		s.True(state.IsBannerVisible)
	})

	s.Run("stored empty hash matches an empty expected hash", func() {
		s.store(`{"hash":""}`)
		state, outcome := s.resolve("")
		s.Equal(models.OutcomeCurrent, outcome)
		s.False(state.IsBannerVisible)
	})

	s.Run("hash comparison is exact", func() {
		s.store(`{"hash":"V2"}`)
		state, _ := s.resolve("v2")
		s.True(state.IsBannerVisible)
	})

	s.Run("unknown properties are ignored", func() {
		s.store(`{"hash":"v2","version":3,"consent":[1]}`)
		state, outcome := s.resolve("v2")
		s.Equal(models.OutcomeCurrent, outcome)
		s.assertJSON(`{"consent":[1],"isBannerVisible":false,"isDetailsVisible":false}`, state)
	})

	s.Run("details are never visible", func() {
		s.store(`{"hash":"v2","isDetailsVisible":true}`)
		state, _ := s.resolve("v2")
		s.False(state.IsDetailsVisible)
	})
}

func (s *ResolverSuite) TestMalformedRecordsFallBackToDefault() {
	cases := map[string]string{
		"invalid json":      `{"consent":`,
		"json null":         `null`,
		"top-level array":   `[1,2]`,
		"top-level string":  `"v2"`,
		"consent not array": `{"consent":"analytics","hash":"v2"}`,
		"hash not string":   `{"consent":[],"hash":2}`,
		"trailing garbage":  `{"hash":"v2"} x`,
		"consent is object": `{"consent":{"id":"a"},"hash":"v2"}`,
	}
	for name, raw := range cases {
		s.Run(name, func() {
			s.logs.Reset()
			s.store(raw)
			state, outcome := s.resolve("v2")
			s.Equal(models.OutcomeMalformed, outcome)
			s.Equal(models.DefaultState(), state)
			s.Contains(s.logs.String(), "discarding malformed consent record")
		})
	}
}

func (s *ResolverSuite) TestStorageFailure() {
	s.Run("read failure surfaces as unavailable", func() {
		s.reader.err = errors.New("dial tcp: connection refused")
		_, _, err := s.res.Resolve(s.ctx, "v2")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.Equal(1, s.reader.calls)
	})

	s.Run("open circuit surfaces as unavailable", func() {
		s.reader.err = sentinel.ErrUnavailable
		_, _, err := s.res.Resolve(s.ctx, "v2")
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.True(errors.Is(err, sentinel.ErrUnavailable))
	})
}

func (s *ResolverSuite) TestResolveDoesNotMutateStoredConsent() {
	s.store(`{"consent":["a","b"],"hash":"v2"}`)
	first, _ := s.resolve("v2")
	first.Consent[0] = models.Consent(`"z"`)

	second, _ := s.resolve("v2")
	s.Equal(`"a"`, string(second.Consent[0]))
}

func (s *ResolverSuite) TestKey() {
	s.Equal(testKey, s.res.Key())
}
