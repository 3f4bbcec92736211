package raft

// raftLog is the in-memory ordered log plus the commit/apply cursors.
// It assumes a single owner holds node.mu for every call; it does no
// locking of its own (spec §5: single-writer discipline lives at the node
// level, not per-field).
type raftLog struct {
	entries     []LogEntry // zero-indexed, never reordered
	commitIndex int        // -1 means "none committed"
	lastApplied int        // -1 means "none applied"
}

func newRaftLog() *raftLog {
	return &raftLog{commitIndex: -1, lastApplied: -1}
}

func (l *raftLog) len() int {
	return len(l.entries)
}

// lastIndex returns the index of the last entry, or -1 if the log is empty.
func (l *raftLog) lastIndex() int {
	return len(l.entries) - 1
}

// lastTerm returns the term of the last entry, or 0 if the log is empty.
func (l *raftLog) lastTerm() uint64 {
	if len(l.entries) == 0 {
		return 0
	}
	return l.entries[len(l.entries)-1].Term
}

// termAt returns the term of the entry at index, and whether index is in
// bounds.
func (l *raftLog) termAt(index int) (uint64, bool) {
	if index < 0 || index >= len(l.entries) {
		return 0, false
	}
	return l.entries[index].Term, true
}

// entriesFrom returns a copy of entries[from:], or nil if from is past the
// end of the log.
func (l *raftLog) entriesFrom(from int) []LogEntry {
	if from >= len(l.entries) {
		return nil
	}
	if from < 0 {
		from = 0
	}
	out := make([]LogEntry, len(l.entries)-from)
	copy(out, l.entries[from:])
	return out
}

// append adds a single entry with the next index/term and returns it.
func (l *raftLog) append(term uint64, command []byte) LogEntry {
	entry := LogEntry{Index: len(l.entries), Term: term, Command: command}
	l.entries = append(l.entries, entry)
	return entry
}

// truncateAndAppend discards any suffix starting at entries[0].Index and
// appends entries in its place (spec §4.4 step 5). A no-op if entries is
// empty.
func (l *raftLog) truncateAndAppend(entries []LogEntry) {
	if len(entries) == 0 {
		return
	}
	from := entries[0].Index
	if from < len(l.entries) {
		l.entries = l.entries[:from]
	}
	l.entries = append(l.entries, entries...)
}

// hasConflictAt reports whether the log has an entry at index whose term
// differs from term. Out-of-range indices never conflict (§9 item 4: the
// AppendEntries receiver bounds-checks separately before trusting this).
func (l *raftLog) hasConflictAt(index int, term uint64) bool {
	existingTerm, ok := l.termAt(index)
	if !ok {
		return false
	}
	return existingTerm != term
}
