package status

import "time"

// Dated is anything carrying a stored status and an optional due date.
type Dated interface {
	StoredStatus() string
	Due() *time.Time
}

// Summary counts processes per visual status.
type Summary struct {
	InProgress int `json:"em_andamento"`
	Done       int `json:"concluido"`
	Overdue    int `json:"atrasado"`
	DueSoon    int `json:"vence_em_breve"`
	Total      int `json:"total"`
}

// Add counts one result.
func (s *Summary) Add(r Result) {
	s.Total++
	switch r.Visual {
	case InProgress:
		s.InProgress++
	case Done:
		s.Done++
	case Overdue:
		s.Overdue++
	case DueSoon:
		s.DueSoon++
	}
}

// Summarize derives every item relative to now and counts the results.
func Summarize[T Dated](items []T, now time.Time) Summary {
	var s Summary
	for _, it := range items {
		s.Add(Derive(it.StoredStatus(), it.Due(), now))
	}
	return s
}
