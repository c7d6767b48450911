package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"PPSocial/tools/errs"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const DefaultTTL = 24 * time.Hour

// Options 控制签名与TTL等参数。
type Options struct {
	Secret []byte        // HMAC 密钥
	Alg    string        // HS256/HS384/HS512（默认 HS256）
	TTL    time.Duration // 令牌有效期（默认 24h）
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, Alg: "HS256", TTL: DefaultTTL}
}

// Issuer signs and validates the opaque credential a client presents on the
// socket handshake. One Issuer is shared by the whole process.
type Issuer struct {
	opts   Options
	method jwtlib.SigningMethod
	now    func() time.Time
}

func NewIssuer(opts Options) (*Issuer, error) {
	if len(opts.Secret) == 0 {
		return nil, errs.New("jwt secret is empty")
	}
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return nil, err
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &Issuer{opts: opts, method: method, now: time.Now}, nil
}

// Issue returns a signed credential for userID along with its expiry.
func (i *Issuer) Issue(userID string) (string, time.Time, error) {
	if strings.TrimSpace(userID) == "" {
		return "", time.Time{}, errs.ErrValidation.WrapMsg("empty user id")
	}
	now := i.now()
	exp := now.Add(i.opts.TTL)

	claims := jwtlib.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	signed, err := jwtlib.NewWithClaims(i.method, claims).SignedString(i.opts.Secret)
	if err != nil {
		return "", time.Time{}, errs.WrapMsg(err, "sign credential")
	}
	return signed, exp, nil
}

// Validate returns the user id bound to token. Failures are either
// errs.ErrCredentialExpired or errs.ErrCredentialMalformed.
func (i *Issuer) Validate(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errs.ErrCredentialMalformed.WrapMsg("empty credential")
	}
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		// 仅允许 HMAC 家族
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return i.opts.Secret, nil
	}, jwtlib.WithTimeFunc(i.now), jwtlib.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return "", errs.ErrCredentialExpired.WrapMsg(err.Error())
		}
		return "", errs.ErrCredentialMalformed.WrapMsg(err.Error())
	}
	if !parsed.Valid {
		return "", errs.ErrCredentialMalformed.WrapMsg("invalid token")
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", errs.ErrCredentialMalformed.WrapMsg("missing subject")
	}
	return sub, nil
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported alg: %s (use HS256/HS384/HS512)", alg)
	}
}
