package job_test

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/frahmantamala/acuhire/internal"
	"github.com/frahmantamala/acuhire/internal/audit"
	datamodel "github.com/frahmantamala/acuhire/internal/core/datamodel/job"
	"github.com/frahmantamala/acuhire/internal/job"
	"github.com/frahmantamala/acuhire/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockJobRepository enforces active-passcode uniqueness like the real index.
type mockJobRepository struct {
	mu         sync.Mutex
	jobs       map[string]*datamodel.Job
	collisions int
}

func newMockJobRepository() *mockJobRepository {
	return &mockJobRepository{jobs: make(map[string]*datamodel.Job)}
}

func (m *mockJobRepository) Create(_ context.Context, j *datamodel.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collisions > 0 {
		m.collisions--
		return job.ErrPasscodeCollision
	}
	for _, existing := range m.jobs {
		if existing.Status == datamodel.StatusActive && existing.Passcode == j.Passcode {
			return job.ErrPasscodeCollision
		}
	}
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

func (m *mockJobRepository) GetByID(_ context.Context, id string) (*datamodel.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		cp := *j
		return &cp, nil
	}
	return nil, nil
}

func (m *mockJobRepository) ListActive(_ context.Context, limit, offset int) ([]*datamodel.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*datamodel.Job
	for _, j := range m.jobs {
		if j.Status == datamodel.StatusActive {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockJobRepository) ListByCompany(_ context.Context, companyID string) ([]*datamodel.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*datamodel.Job
	for _, j := range m.jobs {
		if j.CompanyID == companyID {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockJobRepository) Close(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != datamodel.StatusActive {
		return job.ErrJobClosed
	}
	j.Status = datamodel.StatusClosed
	j.ClosedAt = &at
	return nil
}

type recordingAudit struct {
	entries []audit.Entry
}

func (r *recordingAudit) Record(_ context.Context, e audit.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

var _ = Describe("Job Service", func() {
	var (
		ctx      context.Context
		repo     *mockJobRepository
		recorder *recordingAudit
		svc      *job.Service
		company  *internal.Caller
		meta     audit.RequestMeta
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = newMockJobRepository()
		recorder = &recordingAudit{}
		svc = job.NewService(repo, recorder, logger.Discard())
		company = &internal.Caller{UserID: "co-1", Role: "company"}
		meta = audit.RequestMeta{IPAddress: "198.51.100.1"}
	})

	Describe("Create", func() {
		It("publishes an active posting with a slug and passcode", func() {
			j, err := svc.Create(ctx, company, job.CreateJobDTO{Title: "  Senior Go Engineer ", Location: "Remote"}, meta)
			Expect(err).NotTo(HaveOccurred())

			Expect(j.ID).NotTo(BeEmpty())
			Expect(j.CompanyID).To(Equal("co-1"))
			Expect(j.Title).To(Equal("Senior Go Engineer"))
			Expect(j.Slug).To(Equal("senior-go-engineer"))
			Expect(j.Status).To(Equal(job.StatusActive))
			Expect(j.Passcode).To(MatchRegexp(`^[A-HJ-NP-Z2-9]{8}$`))

			Expect(recorder.entries).To(HaveLen(1))
			Expect(recorder.entries[0].ActionType).To(Equal(audit.ActionDataModification))
			Expect(recorder.entries[0].Details.ResourceID).To(Equal(j.ID))
		})

		It("retries when the passcode collides", func() {
			repo.collisions = 2
			j, err := svc.Create(ctx, company, job.CreateJobDTO{Title: "Designer"}, meta)
			Expect(err).NotTo(HaveOccurred())
			Expect(j.Passcode).To(HaveLen(job.PasscodeLength))
		})

		It("gives up after repeated collisions", func() {
			repo.collisions = 100
			_, err := svc.Create(ctx, company, job.CreateJobDTO{Title: "Designer"}, meta)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(http.StatusInternalServerError))
		})

		It("requires a title", func() {
			_, err := svc.Create(ctx, company, job.CreateJobDTO{Title: "   "}, meta)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})
	})

	Describe("Close", func() {
		var posted *job.Job

		BeforeEach(func() {
			var err error
			posted, err = svc.Create(ctx, company, job.CreateJobDTO{Title: "QA"}, meta)
			Expect(err).NotTo(HaveOccurred())
		})

		It("closes a posting for its owner", func() {
			closed, err := svc.Close(ctx, company, posted.ID, meta)
			Expect(err).NotTo(HaveOccurred())
			Expect(closed.Status).To(Equal(job.StatusClosed))
			Expect(closed.ClosedAt).NotTo(BeNil())

			active, err := svc.ListActive(ctx, 0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(BeEmpty())
		})

		It("refuses another company", func() {
			_, err := svc.Close(ctx, &internal.Caller{UserID: "co-2", Role: "company"}, posted.ID, meta)
			Expect(err).To(MatchError(job.ErrNotOwner))
		})

		It("refuses to close twice", func() {
			_, err := svc.Close(ctx, company, posted.ID, meta)
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.Close(ctx, company, posted.ID, meta)
			Expect(err).To(MatchError(job.ErrJobClosed))
		})

		It("answers not found for an unknown id", func() {
			_, err := svc.Close(ctx, company, "missing", meta)
			Expect(err).To(MatchError(job.ErrJobNotFound))
		})
	})

	Describe("listing", func() {
		It("shows a company all of its own postings", func() {
			a, _ := svc.Create(ctx, company, job.CreateJobDTO{Title: "A"}, meta)
			_, _ = svc.Create(ctx, company, job.CreateJobDTO{Title: "B"}, meta)
			_, _ = svc.Create(ctx, &internal.Caller{UserID: "co-2"}, job.CreateJobDTO{Title: "C"}, meta)
			_, _ = svc.Close(ctx, company, a.ID, meta)

			mine, err := svc.ListMine(ctx, company)
			Expect(err).NotTo(HaveOccurred())
			Expect(mine).To(HaveLen(2))

			active, err := svc.ListActive(ctx, 10, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(HaveLen(2))
		})
	})

	Describe("JobResponse", func() {
		It("shows the passcode to the owner only", func() {
			j, _ := svc.Create(ctx, company, job.CreateJobDTO{Title: "Ops"}, meta)

			Expect(job.NewJobResponse(j, company).Passcode).To(Equal(j.Passcode))
			Expect(job.NewJobResponse(j, &internal.Caller{UserID: "cand-1"}).Passcode).To(BeEmpty())
			Expect(job.NewJobResponse(j, nil).Passcode).To(BeEmpty())
		})
	})
})

var _ = Describe("GeneratePasscode", func() {
	It("draws from the unambiguous alphabet", func() {
		seen := make(map[string]struct{})
		for i := 0; i < 200; i++ {
			code, err := job.GeneratePasscode()
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(MatchRegexp(`^[A-HJ-NP-Z2-9]{8}$`))
			seen[code] = struct{}{}
		}
		Expect(len(seen)).To(BeNumerically(">", 190))
	})
})
