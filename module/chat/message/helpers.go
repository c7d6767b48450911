package message

import "PPSocial/tools/errs"

func errValidation(msg string, kv ...any) error {
	return errs.ErrValidation.WrapMsg(msg, kv...)
}

func errPersistence(err error, kv ...any) error {
	return errs.ErrPersistence.WrapCause(err, "", kv...)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
