package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type ClientTestSuite struct {
	suite.Suite
}

func (s *ClientTestSuite) client(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return New(Config{BaseURL: srv.URL, SessionCookie: "pixzlo_session=abc"}), srv
}

func (s *ClientTestSuite) TestNotFoundIsSuccess() {
	c, srv := s.client(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer srv.Close()

	data, err := c.Get(context.Background(), PathLinearStatus)
	assert.Nil(s.T(), err)
	assert.Nil(s.T(), data)
}

func (s *ClientTestSuite) TestUnauthorized() {
	c, srv := s.client(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	defer srv.Close()

	_, err := c.Get(context.Background(), PathProfile)
	assert.Equal(s.T(), ErrUnauthorized, err)
	assert.Equal(s.T(), "Please log in to Pixzlo to use this feature", err.Error())
}

func (s *ClientTestSuite) TestErrorBodyField() {
	c, srv := s.client(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"website url is required"}`))
	})
	defer srv.Close()

	_, err := c.Get(context.Background(), PathFigmaMetadata)
	assert.EqualError(s.T(), err, "website url is required")
}

func (s *ClientTestSuite) TestErrorStatusFallback() {
	c, srv := s.client(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	})
	defer srv.Close()

	_, err := c.Get(context.Background(), PathFigmaMetadata)
	assert.EqualError(s.T(), err, "HTTP 502: Bad Gateway")
}

func (s *ClientTestSuite) TestEnvelopeUnwrap() {
	c, srv := s.client(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"connected":true}}`))
	})
	defer srv.Close()

	data, err := c.Get(context.Background(), PathLinearStatus)
	assert.Nil(s.T(), err)
	assert.JSONEq(s.T(), `{"connected":true}`, string(data))
}

func (s *ClientTestSuite) TestEnvelopeFailure() {
	c, srv := s.client(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"token expired"}`))
	})
	defer srv.Close()

	_, err := c.Get(context.Background(), PathFigmaMetadata)
	assert.EqualError(s.T(), err, "token expired")
}

func (s *ClientTestSuite) TestRawBodyWithoutEnvelope() {
	c, srv := s.client(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"teams":[{"id":"t1"}]}`))
	})
	defer srv.Close()

	data, err := c.Get(context.Background(), PathLinearMetadata)
	assert.Nil(s.T(), err)
	assert.JSONEq(s.T(), `{"teams":[{"id":"t1"}]}`, string(data))
}

func (s *ClientTestSuite) TestCredentialsAndHeaders() {
	var (
		gotCookie  string
		gotContent string
		gotCustom  string
	)
	c, srv := s.client(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotContent = r.Header.Get("Content-Type")
		gotCustom = r.Header.Get("X-Request-Source")
		_, _ = w.Write([]byte(`{}`))
	})
	defer srv.Close()

	_, err := c.Do(
		context.Background(),
		http.MethodPost,
		PathIssueBatchCreate,
		map[string]string{"X-Request-Source": "popup"},
		map[string]string{"title": "broken button"},
	)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), "pixzlo_session=abc", gotCookie)
	assert.Equal(s.T(), "application/json", gotContent)
	assert.Equal(s.T(), "popup", gotCustom)
}

func (s *ClientTestSuite) TestInvalidJSON() {
	c, srv := s.client(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>oops</html>"))
	})
	defer srv.Close()

	_, err := c.Get(context.Background(), PathProfile)
	assert.NotNil(s.T(), err)
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}
