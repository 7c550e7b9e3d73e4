package domain

import "time"

// DailyStudyStat is the study volume of one member on one calendar date.
// It is owned by the analytics subscriber.
type DailyStudyStat struct {
	MemberID    int64     `json:"memberId"`
	Date        time.Time `json:"date"`
	TotalCards  int       `json:"totalCards"`
	TotalTimeMs int64     `json:"totalTimeMs"`
}

// Record adds one reviewed card that took reviewTimeMs.
func (s *DailyStudyStat) Record(reviewTimeMs int64) {
	s.TotalCards++
	s.TotalTimeMs += reviewTimeMs
}
