package sheets

import (
	"errors"
	"strings"
	"testing"

	"google.golang.org/api/googleapi"

	"github.com/sakif/runclub/internal/apperror"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantMessage string
	}{
		{
			name: "api not enabled",
			err: &googleapi.Error{
				Code:    403,
				Message: "Google Sheets API has not been used in project 12345 before or it is disabled.",
			},
			wantMessage: "not enabled",
		},
		{
			name: "key lacks permission",
			err: &googleapi.Error{
				Code:    403,
				Message: "The caller does not have permission",
			},
			wantMessage: "does not have permission",
		},
		{
			name:        "network failure",
			err:         errors.New("dial tcp: lookup sheets.googleapis.com: no such host"),
			wantMessage: "fetching race calendar",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if !errors.Is(got, apperror.ErrUnavailable) {
				t.Errorf("classify() = %v, want ErrUnavailable", got)
			}
			var appErr *apperror.AppError
			if !errors.As(got, &appErr) {
				t.Fatalf("classify() did not return an *AppError: %v", got)
			}
			if !strings.Contains(appErr.Message, tt.wantMessage) {
				t.Errorf("message = %q, want it to contain %q", appErr.Message, tt.wantMessage)
			}
		})
	}
}
