package apierr

import (
	"net/http"
	"testing"
)

func TestConstructorsSetExpectedStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    *Error
		status int
	}{
		{"ServerError", ServerError("boom"), http.StatusInternalServerError},
		{"SocketChannelSendError", SocketChannelSendError(), http.StatusInternalServerError},
		{"SocketNotFound", SocketNotFound(), http.StatusNotFound},
		{"SocketNotAlive", SocketNotAlive(), http.StatusBadRequest},
		{"ConnectionError", ConnectionError(), http.StatusBadRequest},
		{"NoAuthentication", NoAuthentication(), http.StatusUnauthorized},
		{"BadAuthentication", BadAuthentication(), http.StatusUnauthorized},
		{"Raw", Raw(http.StatusTeapot, "custom"), http.StatusTeapot},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.StatusCode() != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, tc.err.StatusCode())
			}
			if tc.err.Error() == "" {
				t.Fatal("expected non-empty message")
			}
		})
	}
}
