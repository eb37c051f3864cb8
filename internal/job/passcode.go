package job

import (
	"crypto/rand"
	"fmt"
)

const (
	PasscodeLength = 8
	// no 0/O or 1/I, 32 symbols so a byte maps without bias
	passcodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

func GeneratePasscode() (string, error) {
	buf := make([]byte, PasscodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate passcode: %w", err)
	}
	for i, b := range buf {
		buf[i] = passcodeAlphabet[int(b)%len(passcodeAlphabet)]
	}
	return string(buf), nil
}
