package usecase

import "errors"

var errEmptyRecordID = errors.New("document store returned an empty id")
