package chrono

import "time"

type API interface {
	Now() time.Time
	Location() *time.Location
}

type StandardImpl struct {
	location *time.Location
}

// NewStandardImpl returns a clock in the named IANA zone, an empty name uses the local zone.
func NewStandardImpl(zone string) (StandardImpl, error) {
	if zone == "" {
		return StandardImpl{location: time.Local}, nil
	}
	location, err := time.LoadLocation(zone)
	if err != nil {
		return StandardImpl{}, err
	}
	return StandardImpl{location: location}, nil
}

func (s StandardImpl) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardImpl) Location() *time.Location {
	return s.location
}

// Fixed is a clock that only moves when told to.
type Fixed struct {
	Current time.Time
}

func (f *Fixed) Now() time.Time {
	return f.Current
}

func (f *Fixed) Location() *time.Location {
	return f.Current.Location()
}

func (f *Fixed) Advance(d time.Duration) {
	f.Current = f.Current.Add(d)
}
