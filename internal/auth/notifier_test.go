package auth_test

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/acuhire/internal/auth"
	coreUser "github.com/frahmantamala/acuhire/internal/core/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LogResetNotifier", func() {
	var (
		buf *bytes.Buffer
		lg  *slog.Logger
		u   *coreUser.User
		tok auth.Token
	)

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		lg = slog.New(slog.NewTextHandler(buf, nil))
		u = &coreUser.User{ID: "u1", Email: "jane@acuhire.dev"}
		tok = auth.Token{Value: "reset.jwt.value", ExpiresAt: time.Now().Add(time.Hour)}
	})

	It("logs the link when exposed", func() {
		n := auth.NewLogResetNotifier(lg, "http://localhost:3000/reset-password", true)
		Expect(n.SendPasswordReset(context.Background(), u, tok)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("reset-password?token=reset.jwt.value"))
	})

	It("keeps the token out of the log otherwise", func() {
		n := auth.NewLogResetNotifier(lg, "https://app.acuhire.dev/reset-password", false)
		Expect(n.SendPasswordReset(context.Background(), u, tok)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("password reset issued"))
		Expect(buf.String()).NotTo(ContainSubstring("reset.jwt.value"))
	})
})

var _ = Describe("ResetLink", func() {
	It("keeps existing query parameters", func() {
		Expect(auth.ResetLink("https://app.acuhire.dev/reset?lang=en", "t")).To(Equal("https://app.acuhire.dev/reset?lang=en&token=t"))
	})
})
