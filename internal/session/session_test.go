package session

import "testing"

func TestSelectionBumpsGeneration(t *testing.T) {
	s := New()
	if s.ID == "" {
		t.Fatal("session has no id")
	}

	gen := s.Generation()
	s.SelectServer("s1")
	if s.Generation() == gen {
		t.Fatal("SelectServer did not bump the generation")
	}
	if s.ActiveServer != "s1" || s.ActiveChannel != "" {
		t.Fatalf("selection = %q/%q, want s1 with no channel", s.ActiveServer, s.ActiveChannel)
	}

	s.SelectChannel("c1")
	s.SelectServer("s2")
	if s.ActiveChannel != "" {
		t.Fatal("switching servers kept the old channel selection")
	}
}

func TestRevokeIsOneWay(t *testing.T) {
	s := New()
	if s.Revoked() {
		t.Fatal("fresh session already revoked")
	}
	s.Revoke()
	if !s.Revoked() {
		t.Fatal("Revoke did not take")
	}
}
