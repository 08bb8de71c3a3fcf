package edit

import "time"

// Sheet is the state of an editing screen as shown to its user.
type Sheet struct {
	SessionID    string     `json:"session_id"`
	Kind         string     `json:"kind"`
	Context      Context    `json:"context"`
	Rows         []SheetRow `json:"rows"`
	PendingCount int        `json:"pending_count"`
	LoadedAt     time.Time  `json:"loaded_at"`
}

type SheetRow struct {
	SubjectID string `json:"subject_id"`
	Label     string `json:"label"`
	Value     string `json:"value"`
	Saved     string `json:"saved"`
	Dirty     bool   `json:"dirty"`
}

// Sheet renders the session rows: the pending candidate where there is one, else the persisted value.
func (s *Session) Sheet() Sheet {
	ctx := s.Filter().Context
	rows := make([]SheetRow, 0, len(s.Subjects))
	for _, sub := range s.Subjects {
		var saved string
		if rec, ok := s.Baseline(sub.ID, ctx); ok {
			saved = rec.Value
		}
		_, dirty := s.Pending().Get(DeriveKey(sub.ID, ctx...))
		rows = append(rows, SheetRow{
			SubjectID: sub.ID,
			Label:     sub.Label,
			Value:     s.Value(sub.ID, ctx),
			Saved:     saved,
			Dirty:     dirty,
		})
	}
	return Sheet{
		SessionID:    s.ID,
		Kind:         s.Scope().Kind,
		Context:      ctx,
		Rows:         rows,
		PendingCount: s.Pending().Len(),
		LoadedAt:     s.LoadedAt(),
	}
}
