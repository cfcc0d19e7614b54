package models

// SearchFilters holds the categorical filters of a partner search.
// Empty fields match everything.
type SearchFilters struct {
	Level        string
	StudyTimes   []string
	ExcludeEmail string
}

// Matches reports whether a profile passes the level, study time and
// self-exclusion predicates
func (f SearchFilters) Matches(p *Profile) bool {
	return f.MatchesLevel(p.Level) &&
		f.MatchesStudyTimes(p.StudyTimes) &&
		!f.Excludes(p.Email)
}

// MatchesLevel is exact equality on level
func (f SearchFilters) MatchesLevel(level string) bool {
	return f.Level == "" || f.Level == level
}

// MatchesStudyTimes keeps candidates sharing at least one study time with the filter
func (f SearchFilters) MatchesStudyTimes(studyTimes []string) bool {
	if len(f.StudyTimes) == 0 {
		return true
	}
	for _, want := range f.StudyTimes {
		for _, have := range studyTimes {
			if want == have {
				return true
			}
		}
	}
	return false
}

// Excludes reports whether the email identifies the requester
func (f SearchFilters) Excludes(email string) bool {
	return f.ExcludeEmail != "" && f.ExcludeEmail == email
}
