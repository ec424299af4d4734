package message

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pixzlo/bridge/internal/router"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type MessageTestSuite struct {
	suite.Suite
	echo *echo.Echo
	ctrl *Controller
}

func (s *MessageTestSuite) SetupTest() {
	r := router.NewRouter()
	r.Register("ping", func(ctx context.Context, _ router.Message) (interface{}, error) {
		return map[string]string{"pong": "ok"}, nil
	})
	r.Register("broken", func(ctx context.Context, _ router.Message) (interface{}, error) {
		return nil, errors.New("backend unavailable")
	})

	s.echo = echo.New()
	s.ctrl = New(r)
}

func (s *MessageTestSuite) post(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	err := s.ctrl.Post(s.echo.NewContext(req, rec))
	assert.Nil(s.T(), err)

	return rec
}

func (s *MessageTestSuite) TestPost() {
	rec := s.post(`{"type":"ping"}`)
	assert.Equal(s.T(), http.StatusOK, rec.Code)
	assert.JSONEq(s.T(), `{"success":true,"data":{"pong":"ok"}}`, rec.Body.String())
}

func (s *MessageTestSuite) TestPostHandlerError() {
	rec := s.post(`{"type":"broken"}`)
	assert.Equal(s.T(), http.StatusOK, rec.Code)
	assert.JSONEq(s.T(), `{"success":false,"error":"backend unavailable"}`, rec.Body.String())
}

func (s *MessageTestSuite) TestPostUnknownType() {
	rec := s.post(`{"type":"nobody-home"}`)
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)
	assert.Empty(s.T(), rec.Body.String())
}

func (s *MessageTestSuite) TestPostInvalidBody() {
	rec := s.post(`{"data":`)
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
	assert.Contains(s.T(), rec.Body.String(), `"success":false`)
}

func (s *MessageTestSuite) TestTypes() {
	req := httptest.NewRequest(http.MethodGet, "/v1/messages/types", nil)
	rec := httptest.NewRecorder()

	err := s.ctrl.Types(s.echo.NewContext(req, rec))
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Contains(s.T(), rec.Body.String(), "ping")
}

func TestMessageTestSuite(t *testing.T) {
	suite.Run(t, new(MessageTestSuite))
}
