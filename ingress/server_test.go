package ingress_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"msgboard/domain"
	"msgboard/errors"
	"msgboard/ingress"
	"msgboard/internal"
	"msgboard/mocks"
)

func webConfig() internal.WebConfig {
	return internal.WebConfig{
		Host:         "127.0.0.1",
		Port:         3000,
		RelayHost:    "127.0.0.1",
		RelayPort:    5000,
		DialTimeout:  time.Second,
		WriteTimeout: time.Second,
		GracePeriod:  time.Second,
		LogLevel:     "DEBUG",
	}
}

func postForm(t *testing.T, handler http.Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func Test_Submit_ForwardsAndRedirects(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sender := mocks.NewMockSender(ctrl)
	sender.EXPECT().
		Send(gomock.Any(), domain.Submission{Username: "Test", Message: "Hello World!"}).
		Return(nil).
		Times(1)

	server := ingress.NewServer(slog.Default(), webConfig(), sender)

	rec := postForm(t, server.Handler(), url.Values{
		"username": {"Test"},
		"message":  {"Hello World!"},
	})

	req.Equal(http.StatusFound, rec.Code)
	req.Equal("/", rec.Header().Get("Location"))
}

func Test_Submit_EmptyValuesAreForwarded(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sender := mocks.NewMockSender(ctrl)
	// Keys present, values empty: the data model allows it.
	sender.EXPECT().
		Send(gomock.Any(), domain.Submission{}).
		Return(nil).
		Times(1)

	server := ingress.NewServer(slog.Default(), webConfig(), sender)

	rec := postForm(t, server.Handler(), url.Values{
		"username": {""},
		"message":  {""},
	})

	req.Equal(http.StatusFound, rec.Code)
}

func Test_Submit_MissingFieldNeverDialsRelay(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No Send expectation: a malformed submission must not reach the relay.
	sender := mocks.NewMockSender(ctrl)
	server := ingress.NewServer(slog.Default(), webConfig(), sender)

	rec := postForm(t, server.Handler(), url.Values{"username": {"Test"}})

	req.Equal(http.StatusBadRequest, rec.Code)
}

func Test_Submit_UnparseableBodyRejected(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sender := mocks.NewMockSender(ctrl)
	server := ingress.NewServer(slog.Default(), webConfig(), sender)

	r := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader("%zz=broken"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, r)

	req.Equal(http.StatusBadRequest, rec.Code)
}

func Test_Submit_RelayUnreachableReturnsBadGateway(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sender := mocks.NewMockSender(ctrl)
	sender.EXPECT().
		Send(gomock.Any(), gomock.Any()).
		Return(errors.ErrRelayUnreachable).
		Times(1)

	server := ingress.NewServer(slog.Default(), webConfig(), sender)

	rec := postForm(t, server.Handler(), url.Values{
		"username": {"Test"},
		"message":  {"nobody is listening"},
	})

	// The process answers with a failure page instead of crashing.
	req.Equal(http.StatusBadGateway, rec.Code)
	req.Contains(rec.Body.String(), "could not be delivered")
}

func Test_Routes_AreStatic(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sender := mocks.NewMockSender(ctrl)
	server := ingress.NewServer(slog.Default(), webConfig(), sender)

	for _, path := range []string{"/", "/message.html"} {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, r)
		req.Equal(http.StatusOK, rec.Code, path)
		req.Contains(rec.Body.String(), "<form", path)
	}

	r := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, r)
	req.Equal(http.StatusNotFound, rec.Code)

	// GET on the submission path: routes are method+path pairs.
	r = httptest.NewRequest(http.MethodGet, "/message", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, r)
	req.Equal(http.StatusMethodNotAllowed, rec.Code)
}

func Test_Shutdown_WaitsForInFlightRequests(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sender := mocks.NewMockSender(ctrl)
	server := ingress.NewServer(slog.Default(), webConfig(), sender)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req.NoError(server.Shutdown(ctx))
}
