package model

import "time"

// DayLayout is the calendar-day format used for the Day column and day queries.
const DayLayout = "2006-01-02"

// Observation is one probe result. Rows are only ever inserted and pruned.
type Observation struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Timestamp  time.Time `gorm:"index;not null" json:"timestamp"`
	Day        string    `gorm:"index;size:10;not null" json:"day"`
	StatusCode int       `gorm:"not null" json:"status_code"`
	LatencyMs  float64   `gorm:"not null" json:"latency_ms"`
	Message    string    `gorm:"not null" json:"message"`
}

// DailyAverage is the mean latency over every stored observation of one day.
type DailyAverage struct {
	Day           string  `json:"day"`
	MeanLatencyMs float64 `json:"mean_latency_ms"`
	Samples       int     `json:"samples"`
}
