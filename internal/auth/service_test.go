package auth_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frahmantamala/acuhire/internal"
	"github.com/frahmantamala/acuhire/internal/audit"
	"github.com/frahmantamala/acuhire/internal/auth"
	coreUser "github.com/frahmantamala/acuhire/internal/core/user"
	"github.com/frahmantamala/acuhire/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

var _ = Describe("Auth Service", func() {
	var (
		ctx      context.Context
		store    *memoryStore
		recorder *recordingAudit
		notifier *capturingNotifier
		issuer   *auth.TokenIssuer
		hasher   *auth.BcryptHasher
		svc      *auth.Service
		meta     audit.RequestMeta
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = newMemoryStore()
		recorder = &recordingAudit{}
		notifier = &capturingNotifier{}
		issuer = newTestIssuer(time.Now, auth.NewMemoryDenyList())
		hasher = auth.NewBcryptHasher(bcrypt.MinCost)
		svc = auth.NewService(store, hasher, issuer, recorder, notifier, logger.Discard(), auth.Options{PasswordMinLength: 8})
		meta = audit.RequestMeta{IPAddress: "203.0.113.7", UserAgent: "ginkgo"}
	})

	register := func(email, role string) *coreUser.User {
		u, err := svc.Register(ctx, auth.RegisterDTO{
			Email: email, Password: "password1", Role: role, Name: "Test User",
			Phone: "+62 812 0000 0000", LinkedIn: "https://linkedin.com/in/test-user",
		}, meta)
		Expect(err).NotTo(HaveOccurred())
		return u
	}

	Describe("Register", func() {
		It("creates a candidate with a hashed password", func() {
			u := register("Jane@Example.com ", "candidate")

			Expect(u.ID).NotTo(BeEmpty())
			Expect(u.Email).To(Equal("jane@example.com"))
			Expect(u.Role).To(Equal(coreUser.RoleCandidate))
			Expect(u.PasswordHash).NotTo(Equal("password1"))
			Expect(hasher.Verify("password1", u.PasswordHash)).To(BeTrue())
			Expect(u.CandidateProfile).NotTo(BeNil())
			Expect(recorder.actions()).To(ConsistOf(audit.ActionUserRegister))
		})

		It("defaults a company's name from the company profile", func() {
			u, err := svc.Register(ctx, auth.RegisterDTO{
				Email: "hr@acme.test", Password: "password1", Role: "company", CompanyName: "Acme",
			}, meta)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Name).To(Equal("Acme"))
			Expect(u.CompanyProfile.CompanyName).To(Equal("Acme"))
			Expect(u.CandidateProfile).To(BeNil())
		})

		It("refuses admin self-registration", func() {
			_, err := svc.Register(ctx, auth.RegisterDTO{Email: "x@y.co", Password: "password1", Role: "admin", Name: "X"}, meta)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(400))
		})

		DescribeTable("rejects invalid input",
			func(dto auth.RegisterDTO) {
				_, err := svc.Register(ctx, dto, meta)
				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
			},
			Entry("bad email", auth.RegisterDTO{Email: "nope", Password: "password1", Role: "candidate", Name: "N"}),
			Entry("short password", auth.RegisterDTO{Email: "a@b.co", Password: "pass1", Role: "candidate", Name: "N"}),
			Entry("password without digit", auth.RegisterDTO{Email: "a@b.co", Password: "passwordonly", Role: "candidate", Name: "N"}),
			Entry("unknown role", auth.RegisterDTO{Email: "a@b.co", Password: "password1", Role: "recruiter", Name: "N"}),
			Entry("missing name", auth.RegisterDTO{Email: "a@b.co", Password: "password1", Role: "candidate", Phone: "1", LinkedIn: "l"}),
			Entry("candidate without phone", auth.RegisterDTO{Email: "a@b.co", Password: "password1", Role: "candidate", Name: "N", LinkedIn: "https://linkedin.com/in/n"}),
			Entry("candidate without linkedin", auth.RegisterDTO{Email: "a@b.co", Password: "password1", Role: "candidate", Name: "N", Phone: "0812"}),
			Entry("candidate with blank nested profile", auth.RegisterDTO{
				Email: "a@b.co", Password: "password1", Role: "candidate", Name: "N",
				CandidateProfile: &coreUser.CandidateProfile{Phone: "  ", SocialLinks: coreUser.SocialLinks{LinkedIn: " "}},
			}),
			Entry("company without any name", auth.RegisterDTO{Email: "a@b.co", Password: "password1", Role: "company"}),
		)

		It("names the missing candidate field", func() {
			_, err := svc.Register(ctx, auth.RegisterDTO{Email: "c@x.com", Password: "Passw0rd!", Role: "candidate", Name: "Cand"}, meta)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(400))
			details, ok := appErr.Details.(internal.ValidationErrors)
			Expect(ok).To(BeTrue())
			var fields []string
			for _, fe := range details.Errors {
				fields = append(fields, fe.Field)
			}
			Expect(fields).To(ContainElements("candidateProfile.phone", "candidateProfile.socialLinks.linkedin"))

			u, err := store.GetByEmail(ctx, "c@x.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(u).To(BeNil())
		})

		It("reports a duplicate email as a conflict", func() {
			register("dup@example.com", "candidate")
			_, err := svc.Register(ctx, auth.RegisterDTO{Email: "DUP@example.com", Password: "password1", Role: "company", Name: "D"}, meta)
			Expect(err).To(MatchError(auth.ErrEmailTaken))
		})

		It("lets exactly one of many concurrent registrations win", func() {
			const n = 10
			var (
				wg        sync.WaitGroup
				successes int32
				conflicts int32
			)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := svc.Register(ctx, auth.RegisterDTO{Email: "race@example.com", Password: "password1", Role: "candidate", Name: "R", Phone: "0812", LinkedIn: "l"}, meta)
					switch {
					case err == nil:
						atomic.AddInt32(&successes, 1)
					case errors.Is(err, auth.ErrEmailTaken):
						atomic.AddInt32(&conflicts, 1)
					}
				}()
			}
			wg.Wait()
			Expect(successes).To(BeEquivalentTo(1))
			Expect(conflicts).To(BeEquivalentTo(n - 1))
		})
	})

	Describe("Login", func() {
		BeforeEach(func() {
			register("login@example.com", "company")
			recorder.entries = nil
		})

		It("issues a session token carrying id and role", func() {
			res, err := svc.Login(ctx, auth.LoginDTO{Email: "LOGIN@example.com", Password: "password1"}, meta)
			Expect(err).NotTo(HaveOccurred())

			claims, err := issuer.Verify(ctx, res.Token.Value, auth.PurposeSession)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.Subject).To(Equal(res.User.ID))
			Expect(claims.Role).To(Equal("company"))
			Expect(res.User.LastLogin).NotTo(BeNil())
			Expect(recorder.actions()).To(ConsistOf(audit.ActionUserLogin))
		})

		It("answers the same error for a wrong password and an unknown email", func() {
			_, errWrong := svc.Login(ctx, auth.LoginDTO{Email: "login@example.com", Password: "password2"}, meta)
			_, errUnknown := svc.Login(ctx, auth.LoginDTO{Email: "ghost@example.com", Password: "password1"}, meta)

			Expect(errWrong).To(MatchError(auth.ErrInvalidCredentials))
			Expect(errUnknown).To(MatchError(auth.ErrInvalidCredentials))
			Expect(errWrong.Error()).To(Equal(errUnknown.Error()))
		})

		It("records failed attempts as security events", func() {
			_, _ = svc.Login(ctx, auth.LoginDTO{Email: "login@example.com", Password: "password2"}, meta)
			e := recorder.last()
			Expect(e.ActionType).To(Equal(audit.ActionSecurityEvent))
			Expect(e.IPAddress).To(Equal("203.0.113.7"))
			Expect(e.Details.Status).To(Equal(audit.StatusFailure))
		})

		It("requires both fields", func() {
			_, err := svc.Login(ctx, auth.LoginDTO{Email: "login@example.com"}, meta)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(400))
		})

		It("surfaces store failures as internal errors", func() {
			store.err = errors.New("connection reset")
			_, err := svc.Login(ctx, auth.LoginDTO{Email: "login@example.com", Password: "password1"}, meta)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(500))
		})
	})

	Describe("Logout", func() {
		It("revokes the presented token", func() {
			register("out@example.com", "candidate")
			res, err := svc.Login(ctx, auth.LoginDTO{Email: "out@example.com", Password: "password1"}, meta)
			Expect(err).NotTo(HaveOccurred())

			svc.Logout(ctx, res.Token.Value, meta)

			_, err = issuer.Verify(ctx, res.Token.Value, auth.PurposeSession)
			Expect(errors.Is(err, auth.ErrTokenRevoked)).To(BeTrue())
			Expect(recorder.actions()).To(ContainElement(audit.ActionUserLogout))
		})

		It("is a no-op without a valid token", func() {
			svc.Logout(ctx, "", meta)
			svc.Logout(ctx, "garbage", meta)
			Expect(recorder.entries).To(BeEmpty())
		})
	})

	Describe("password reset", func() {
		var u *coreUser.User

		BeforeEach(func() {
			u = register("reset@example.com", "candidate")
		})

		It("does not reveal whether an email exists", func() {
			Expect(svc.ForgotPassword(ctx, auth.ForgotPasswordDTO{Email: "ghost@example.com"}, meta)).To(Succeed())
			Expect(notifier.calls).To(Equal(0))

			Expect(svc.ForgotPassword(ctx, auth.ForgotPasswordDTO{Email: "reset@example.com"}, meta)).To(Succeed())
			Expect(notifier.calls).To(Equal(1))
		})

		It("changes the password once per token", func() {
			Expect(svc.ForgotPassword(ctx, auth.ForgotPasswordDTO{Email: "reset@example.com"}, meta)).To(Succeed())
			tok := notifier.token.Value

			Expect(svc.ResetPassword(ctx, auth.ResetPasswordDTO{Token: tok, NewPassword: "newpassword9"}, meta)).To(Succeed())

			stored, _ := store.GetByID(ctx, u.ID)
			Expect(hasher.Verify("newpassword9", stored.PasswordHash)).To(BeTrue())
			_, err := svc.Login(ctx, auth.LoginDTO{Email: "reset@example.com", Password: "password1"}, meta)
			Expect(err).To(MatchError(auth.ErrInvalidCredentials))

			err = svc.ResetPassword(ctx, auth.ResetPasswordDTO{Token: tok, NewPassword: "another1pass"}, meta)
			Expect(err).To(MatchError(auth.ErrInvalidResetToken))
		})

		It("refuses a session token as a reset token", func() {
			res, err := svc.Login(ctx, auth.LoginDTO{Email: "reset@example.com", Password: "password1"}, meta)
			Expect(err).NotTo(HaveOccurred())

			err = svc.ResetPassword(ctx, auth.ResetPasswordDTO{Token: res.Token.Value, NewPassword: "newpassword9"}, meta)
			Expect(err).To(MatchError(auth.ErrInvalidResetToken))
		})

		It("validates the new password before touching the token", func() {
			err := svc.ResetPassword(ctx, auth.ResetPasswordDTO{Token: "whatever", NewPassword: "short"}, meta)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})
	})
})
