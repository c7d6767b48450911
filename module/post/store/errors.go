package store

import (
	"PPSocial/tools/errs"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func postObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return oid, errs.ErrValidation.WrapMsg("Invalid post ID")
	}
	return oid, nil
}

func errPostNotFound() error {
	return errs.ErrNotFound.WrapMsg("Post not found")
}

func persistence(err error, op string) error {
	return errs.ErrPersistence.WrapCause(err, "", "op", op)
}
