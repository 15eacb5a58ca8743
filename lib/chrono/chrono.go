package chrono

import "time"

// API abstracts the clock so services can be tested with a frozen time.
type API interface {
	Now() time.Time
	Location() *time.Location
}

type Standard struct {
	location *time.Location
}

// force timezone to be Europe/Moscow regardless of where the server
// runs, the ru-ru storefront rolls its prices over on Moscow dates and
// date arithmetic with <time.Time>.Year()/Month()/Day() must agree with it
func NewStandard() (Standard, error) {
	location, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		return Standard{}, err
	}
	return Standard{location: location}, nil
}

func (s Standard) Now() time.Time {
	return time.Now().In(s.location)
}

func (s Standard) Location() *time.Location {
	return s.location
}

// Fixed is a clock stuck at a single instant, for tests.
type Fixed struct {
	Time time.Time
}

func (f Fixed) Now() time.Time {
	return f.Time
}

func (f Fixed) Location() *time.Location {
	return f.Time.Location()
}

// Day formats a time as the date key used for daily snapshots.
func Day(t time.Time) string {
	return t.Format("2006-01-02")
}
