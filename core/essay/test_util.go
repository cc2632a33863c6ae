package essay

import (
	"time"

	"github.com/notamil/backend/core"
	"github.com/notamil/backend/core/student"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service with a controllable clock and no retry
// delay, suitable for tests.
func NewServiceMock(
	repo Repository,
	students student.Service,
	mailSvc core.EmailService,
	logger core.Logger,
	nowFunc func() time.Time,
) Service {
	return &serviceMock{
		service: service{
			repo:     repo,
			students: students,
			mailSvc:  mailSvc,
			logger:   logger,
			retry:    core.RetryPolicy{MaxAttempts: 3},
			nowFunc:  nowFunc,
		},
	}
}
