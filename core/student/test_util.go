package student

import "time"

type serviceMock struct {
	service
}

// NewServiceMock returns a Service with a controllable clock and timezone.
func NewServiceMock(repo Repository, nowFunc func() time.Time, loc *time.Location) Service {
	return &serviceMock{
		service: service{
			repo:    repo,
			loc:     loc,
			nowFunc: nowFunc,
		},
	}
}
