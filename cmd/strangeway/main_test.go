package main

import "testing"

func TestEnvDefault(t *testing.T) {
	t.Setenv("STRANGEWAY_TEST_ADDR", "")
	if got := envDefault("STRANGEWAY_TEST_ADDR", ":8080"); got != ":8080" {
		t.Errorf("Expected fallback for empty env, got %q", got)
	}

	t.Setenv("STRANGEWAY_TEST_ADDR", ":9090")
	if got := envDefault("STRANGEWAY_TEST_ADDR", ":8080"); got != ":9090" {
		t.Errorf("Expected env value to win over fallback, got %q", got)
	}
}
