// Package domain contains the entities shared by the review scheduler and its
// event subscribers: the per-card review record, the member progress and badges
// owned by gamification, and the daily study statistics owned by analytics.
//
// Calendar dates are carried as time.Time values at midnight UTC of the civil
// date in the scheduling time zone. Use DateOf to derive one.
package domain
