package server

import (
	"testing"
)

func TestCheckAuthToken_Valid(t *testing.T) {
	secret := "test-secret-at-least-32-chars-long-here"

	if !CheckAuthToken("Bearer "+secret, secret) {
		t.Error("Expected matching token to be accepted")
	}
}

func TestCheckAuthToken_Invalid(t *testing.T) {
	secret := "test-secret-at-least-32-chars-long-here"

	testCases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong token", "Bearer wrong-secret-at-least-32-chars-long"},
		{"wrong scheme", "Basic " + secret},
		{"no scheme", secret},
		{"lowercase scheme", "bearer " + secret},
		{"trailing whitespace", "Bearer " + secret + " "},
		{"token prefix only", "Bearer " + secret[:10]},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if CheckAuthToken(tc.header, secret) {
				t.Errorf("Expected header %q to be rejected", tc.header)
			}
		})
	}
}

func TestCheckAuthToken_EmptySecretDisablesAuth(t *testing.T) {
	testCases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"any header", "Bearer something"},
		{"garbage header", "not-even-a-scheme"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if !CheckAuthToken(tc.header, "") {
				t.Errorf("Expected header %q to be accepted when no secret is configured", tc.header)
			}
		})
	}
}
