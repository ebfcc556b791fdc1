package enrollments

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	enrollAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrollment_attempts_total",
			Help: "Enrollment attempts by outcome (accepted, a rejection code, or error)",
		},
		[]string{"outcome"},
	)

	mailJobsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enroll_mail_jobs_submitted_total",
			Help: "EnrollMail jobs handed to the queue by result (enqueued, failed, dropped)",
		},
		[]string{"result"},
	)
)
