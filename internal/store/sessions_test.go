package store

import (
	"testing"
	"time"
)

const testIdle = 30 * time.Minute

// assignSession is a helper that runs OpenOrExtendSession in a write
// transaction.
func assignSession(t *testing.T, db *DB, created int64) int64 {
	t.Helper()
	var id int64
	err := db.Write(func(tx *Tx) error {
		var err error
		id, err = tx.OpenOrExtendSession(created, testIdle)
		return err
	})
	if err != nil {
		t.Fatalf("OpenOrExtendSession: %v", err)
	}
	return id
}

func TestSessionExtendsWithinIdleGap(t *testing.T) {
	db := testDB(t)

	base := int64(1_000_000)
	first := assignSession(t, db, base)
	// 10 minutes later: same session.
	second := assignSession(t, db, base+(10*time.Minute).Milliseconds())

	if first != second {
		t.Errorf("notes 10 minutes apart got sessions %d and %d, want one session", first, second)
	}

	s, err := db.GetSession(first)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s.NoteCount != 2 {
		t.Errorf("note_count = %d, want 2", s.NoteCount)
	}
	if s.Ended != base+(10*time.Minute).Milliseconds() {
		t.Errorf("ended = %d, want created time of latest note", s.Ended)
	}
}

func TestSessionSplitsPastIdleGap(t *testing.T) {
	db := testDB(t)

	base := int64(1_000_000)
	first := assignSession(t, db, base)
	// 40 minutes later: past the 30 minute threshold, new session.
	second := assignSession(t, db, base+(40*time.Minute).Milliseconds())

	if first == second {
		t.Error("notes 40 minutes apart should land in distinct sessions")
	}

	old, err := db.GetSession(first)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if old.Ended != base {
		t.Errorf("closed session ended = %d, want %d (its last note)", old.Ended, base)
	}
	if old.NoteCount != 1 {
		t.Errorf("closed session note_count = %d, want 1", old.NoteCount)
	}
}

func TestSessionGapExactlyAtThreshold(t *testing.T) {
	db := testDB(t)

	base := int64(1_000_000)
	first := assignSession(t, db, base)
	// A gap of exactly the idle threshold still extends.
	second := assignSession(t, db, base+testIdle.Milliseconds())

	if first != second {
		t.Errorf("gap equal to threshold split the session: %d vs %d", first, second)
	}
}

func TestCoherenceScore(t *testing.T) {
	if got := coherenceScore(0, 0, 1, testIdle); got != 1.0 {
		t.Errorf("single note coherence = %v, want 1.0", got)
	}

	// Two notes one minute apart in a 30-minute window: high coherence.
	tight := coherenceScore(0, time.Minute.Milliseconds(), 2, testIdle)
	// Two notes 29 minutes apart: low coherence.
	loose := coherenceScore(0, (29 * time.Minute).Milliseconds(), 2, testIdle)

	if tight <= loose {
		t.Errorf("tight session coherence %v should exceed loose %v", tight, loose)
	}
	for _, score := range []float64{tight, loose} {
		if score < 0 || score > 1 {
			t.Errorf("coherence %v outside [0,1]", score)
		}
	}
}

func TestRecentSessions(t *testing.T) {
	db := testDB(t)

	base := int64(1_000_000)
	assignSession(t, db, base)
	assignSession(t, db, base+(2*time.Hour).Milliseconds())
	assignSession(t, db, base+(4*time.Hour).Milliseconds())

	sessions, err := db.RecentSessions(2)
	if err != nil {
		t.Fatalf("RecentSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	if sessions[0].Started < sessions[1].Started {
		t.Error("sessions not ordered newest first")
	}
}
