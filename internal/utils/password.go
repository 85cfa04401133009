package utils

import "golang.org/x/crypto/bcrypt"

// HashPIN returns a bcrypt hash of a volunteer device PIN using the given cost.
func HashPIN(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPIN safely compares a stored bcrypt hash against an entered PIN.
func VerifyPIN(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
