package domain

// ProjectContext holds the free-form project fields shown next to the
// conversation. They are cleared together with it.
type ProjectContext struct {
	DatabaseConfig     string
	ProjectDescription string
}

const (
	PhaseSubmitted = "submitted"
	PhaseSettled   = "settled"
)

// AuditEntry describes one turn as it enters a conversation.
type AuditEntry struct {
	SessionID string
	Backend   string
	Seq       int
	Turn      Turn
	Phase     string
	Turns     int
}

// AuditRecord is a single audited turn as stored.
type AuditRecord struct {
	PK        string
	SK        string
	SessionID string
	TurnID    string
	Sender    string
	Text      string
	Phase     string
	CreatedAt string
	TTL       int64
}

// SessionMeta stores aggregate audit state for one session generation.
type SessionMeta struct {
	PK           string
	SK           string
	SessionID    string
	Backend      string
	LastActivity string
	Turns        int
	TTL          int64
}
