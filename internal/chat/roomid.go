package chat

// RoomID derives the chat room key for a pair of users. The two ids are
// sorted lexicographically and joined, so both participants' clients
// resolve to the same room document regardless of who initiated contact:
// RoomID(a, b) == RoomID(b, a).
//
// A degenerate self-pair still yields a deterministic key; callers must not
// create self-chats.
func RoomID(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return userA + "_" + userB
}
