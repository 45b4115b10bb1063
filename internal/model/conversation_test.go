package model

import "testing"

func TestNormalizePair(t *testing.T) {
	tests := []struct {
		name  string
		x, y  uint64
		a, b  uint64
	}{
		{"already ordered", 3, 5, 3, 5},
		{"reversed", 5, 3, 3, 5},
		{"large ids", 900, 7, 7, 900},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := NormalizePair(tt.x, tt.y)
			if a != tt.a || b != tt.b {
				t.Fatalf("got (%d,%d) want (%d,%d)", a, b, tt.a, tt.b)
			}
		})
	}
}

func TestConversationSides(t *testing.T) {
	cv := &Conversation{ID: 1, UserAID: 3, UserBID: 5, UserALeft: true}

	if !cv.HasParticipant(3) || !cv.HasParticipant(5) {
		t.Fatal("both sides must be participants")
	}
	if cv.HasParticipant(9) {
		t.Fatal("stranger must not be a participant")
	}
	if got := cv.PeerID(3); got != 5 {
		t.Fatalf("PeerID(3)=%d want 5", got)
	}
	if got := cv.PeerID(5); got != 3 {
		t.Fatalf("PeerID(5)=%d want 3", got)
	}
	if !cv.LeftFor(3) {
		t.Fatal("side A is marked left")
	}
	if cv.LeftFor(5) {
		t.Fatal("side B is not marked left")
	}
	if cv.PeerLeft(3) {
		t.Fatal("side B has not left from A's perspective")
	}
	if !cv.PeerLeft(5) {
		t.Fatal("side A has left from B's perspective")
	}
}

func TestFlagTransitions(t *testing.T) {
	cv := &Conversation{UserAID: 3, UserBID: 5}

	aLeft, bLeft := cv.FlagsAfterLeave(5)
	if aLeft || !bLeft {
		t.Fatalf("after B leaves: got (%v,%v) want (false,true)", aLeft, bLeft)
	}

	cv.UserBLeft = true
	aLeft, bLeft = cv.FlagsAfterLeave(3)
	if !aLeft || !bLeft {
		t.Fatalf("after both leave: got (%v,%v) want (true,true)", aLeft, bLeft)
	}

	aLeft, bLeft = cv.FlagsAfterRejoin(5)
	if aLeft || bLeft {
		t.Fatalf("after B rejoins: got (%v,%v) want (false,false)", aLeft, bLeft)
	}

	// The non-left side rejoining changes nothing.
	aLeft, bLeft = cv.FlagsAfterRejoin(3)
	if aLeft || !bLeft {
		t.Fatalf("A rejoining must not clear B's flag: got (%v,%v)", aLeft, bLeft)
	}
}
