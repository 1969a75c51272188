package main

import (
	"net/http/httptest"
	"testing"

	"montage/internal/pkg/errors"
)

func TestCallbackCode(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    string
		wantErr errors.Code
	}{
		{"ok", "?state=s1&code=abc", "abc", ""},
		{"wrong state", "?state=other&code=abc", "", errors.CodeValidation},
		{"denied", "?state=s1&error=access_denied", "", errors.CodeBadRequest},
		{"no code", "?state=s1", "", errors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/callback"+tt.query, nil)
			got, err := callbackCode(r, "s1")
			if tt.wantErr != "" {
				if !errors.IsCode(err, tt.wantErr) {
					t.Fatalf("expected %s, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("got %q, %v", got, err)
			}
		})
	}
}
