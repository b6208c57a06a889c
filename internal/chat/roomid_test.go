package chat

import "testing"

func TestRoomIDSymmetry(t *testing.T) {
	pairs := [][2]string{
		{"u1", "u2"},
		{"seller-42", "buyer-7"},
		{"z", "a"},
		{"ivan", "ivana"},
	}
	for _, p := range pairs {
		ab := RoomID(p[0], p[1])
		ba := RoomID(p[1], p[0])
		if ab != ba {
			t.Errorf("RoomID(%q,%q)=%q != RoomID(%q,%q)=%q", p[0], p[1], ab, p[1], p[0], ba)
		}
	}
}

func TestRoomIDDeterministic(t *testing.T) {
	if got := RoomID("u2", "u1"); got != "u1_u2" {
		t.Errorf("RoomID(u2,u1) = %q, want u1_u2", got)
	}
	// Degenerate self-pair still yields a stable key.
	if got := RoomID("u1", "u1"); got != "u1_u1" {
		t.Errorf("RoomID(u1,u1) = %q, want u1_u1", got)
	}
}
