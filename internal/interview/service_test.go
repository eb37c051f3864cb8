package interview_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/acuhire/internal"
	"github.com/frahmantamala/acuhire/internal/interview"
	"github.com/frahmantamala/acuhire/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type mockPasscodeRepository struct {
	jobs    map[string]*interview.JobRef
	err     error
	lookups []string
}

func (m *mockPasscodeRepository) FindActiveByPasscode(_ context.Context, code string) (*interview.JobRef, error) {
	m.lookups = append(m.lookups, code)
	if m.err != nil {
		return nil, m.err
	}
	return m.jobs[code], nil
}

var _ = Describe("Interview Service", func() {
	var (
		repo *mockPasscodeRepository
		svc  *interview.Service
		ctx  context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = &mockPasscodeRepository{jobs: map[string]*interview.JobRef{
			"ABCD2345": {ID: "job-1", Title: "Backend Engineer", Slug: "backend-engineer", CompanyID: "co-1"},
		}}
		svc = interview.NewService(repo, logger.Discard())
	})

	It("returns the job for an active code", func() {
		ref, err := svc.Redeem(ctx, "ABCD2345")
		Expect(err).NotTo(HaveOccurred())
		Expect(ref.ID).To(Equal("job-1"))
	})

	It("trims and upper-cases the code", func() {
		ref, err := svc.Redeem(ctx, "  abcd2345\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(ref.Slug).To(Equal("backend-engineer"))
		Expect(repo.lookups).To(Equal([]string{"ABCD2345"}))
	})

	DescribeTable("answers not found without distinguishing why",
		func(code string) {
			_, err := svc.Redeem(ctx, code)
			Expect(err).To(MatchError(interview.ErrPasscodeNotFound))
		},
		Entry("unknown", "ZZZZ9999"),
		Entry("empty", ""),
		Entry("whitespace", "   "),
		Entry("overlong", strings.Repeat("A", 65)),
	)

	It("skips the lookup for empty and overlong codes", func() {
		_, _ = svc.Redeem(ctx, "")
		_, _ = svc.Redeem(ctx, strings.Repeat("A", 100))
		Expect(repo.lookups).To(BeEmpty())
	})

	It("reports storage failures as internal errors", func() {
		repo.err = errors.New("db down")
		_, err := svc.Redeem(ctx, "ABCD2345")
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.StatusCode).To(Equal(http.StatusInternalServerError))
	})
})

var _ = Describe("Interview Handler", func() {
	var handler *interview.Handler

	BeforeEach(func() {
		repo := &mockPasscodeRepository{jobs: map[string]*interview.JobRef{
			"ABCD2345": {ID: "job-1", Title: "Backend Engineer", Slug: "backend-engineer", CompanyID: "co-1"},
		}}
		handler = interview.NewHandler(interview.NewService(repo, logger.Discard()), logger.Discard())
	})

	verify := func(body string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/verify-interview-code", bytes.NewBufferString(body))
		w := httptest.NewRecorder()
		handler.VerifyCode(w, r)
		return w
	}

	It("answers 200 with the job reference", func() {
		w := verify(`{"code":"abcd2345"}`)
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp interview.VerifyCodeResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.JobRef.ID).To(Equal("job-1"))
		Expect(resp.JobRef.CompanyID).To(Equal("co-1"))
	})

	It("answers 404 for a wrong code", func() {
		Expect(verify(`{"code":"NOPE1234"}`).Code).To(Equal(http.StatusNotFound))
	})

	It("answers 404 for a missing or unreadable body", func() {
		Expect(verify(`{}`).Code).To(Equal(http.StatusNotFound))
		Expect(verify(`not json`).Code).To(Equal(http.StatusNotFound))
	})
})
