package oauthflow

import (
	"testing"

	"github.com/guitaripod/pixie/internal/apperror"
)

func TestMapDeviceError(t *testing.T) {
	cases := []struct {
		code string
		kind apperror.Kind
	}{
		{"authorization_pending", apperror.BadRequest},
		{"slow_down", apperror.BadRequest},
		{"expired_token", apperror.BadRequest},
		{"access_denied", apperror.Unauthorized},
		{"something_else", apperror.Internal},
	}
	for _, c := range cases {
		err := mapDeviceError(c.code)
		ae := apperror.As(err)
		if ae.Kind != c.kind {
			t.Errorf("mapDeviceError(%q).Kind = %v, want %v", c.code, ae.Kind, c.kind)
		}
	}
}
