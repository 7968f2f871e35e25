package model

import "testing"

// TestAllPassed tests the AllPassed helper.
func TestAllPassed(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		results  []VerificationResult
		expected bool
	}{
		{
			name:     "empty list passes",
			results:  nil,
			expected: true,
		},
		{
			name: "all passing",
			results: []VerificationResult{
				{Passed: true},
				{Passed: true},
			},
			expected: true,
		},
		{
			name: "one failure fails the set",
			results: []VerificationResult{
				{Passed: true},
				{Passed: false},
				{Passed: true},
			},
			expected: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := AllPassed(tc.results); got != tc.expected {
				t.Errorf("AllPassed() = %v, expected %v", got, tc.expected)
			}
		})
	}
}

// TestFailureMessages tests failure message extraction.
func TestFailureMessages(t *testing.T) {
	t.Parallel()

	results := []VerificationResult{
		{Passed: true, Message: ""},
		{Passed: false, Message: "no row matching {title: Test Song} in table songs"},
		{Passed: false, Message: ""},
		{Passed: false, Message: "POST /api/songs returned 500"},
	}
	msgs := FailureMessages(results)
	if len(msgs) != 2 {
		t.Fatalf("FailureMessages() len = %d, expected 2", len(msgs))
	}
	if msgs[0] != "no row matching {title: Test Song} in table songs" {
		t.Errorf("first message = %q", msgs[0])
	}
}

// TestAuthStateDigest tests that auth context distinguishes states.
func TestAuthStateDigest(t *testing.T) {
	t.Parallel()

	anon := AuthState{}
	user := AuthState{Authenticated: true, UserID: "42", Role: "admin"}
	other := AuthState{Authenticated: true, UserID: "7", Role: "member"}

	if anon.Digest() == user.Digest() {
		t.Error("anonymous and authenticated digests are equal")
	}
	if user.Digest() == other.Digest() {
		t.Error("different users produced the same digest")
	}
	if anon.Digest() != (AuthState{}).Digest() {
		t.Error("identical anonymous states produced different digests")
	}
}
