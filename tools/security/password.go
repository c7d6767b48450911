package security

import (
	"errors"

	"PPSocial/tools/errs"

	"golang.org/x/crypto/bcrypt"
)

func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", errs.WrapMsg(err, "hash password")
	}
	return string(b), nil
}

// CheckPassword reports whether plain matches hash. A mismatch is not an error.
func CheckPassword(hash, plain string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, errs.WrapMsg(err, "compare password")
}
