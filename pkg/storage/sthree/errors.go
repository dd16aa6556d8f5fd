package sthree

import (
	"net/http"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/nc6/cvmfs/pkg/errors"
	"github.com/nc6/cvmfs/pkg/storage/status"
)

// missingObjectCodes report an absent object or bucket. "NotFound" is returned by minio and HEAD requests.
var missingObjectCodes = map[string]bool{
	"NoSuchKey":    true,
	"NoSuchBucket": true,
	"NotFound":     true,
}

func filterErrNotExists(err error) error {
	if errors.Is(err, status.ErrNotExists) || errors.Is(err, status.ErrNotFound) {
		return nil
	}
	return err
}

// toSentinelErrors maps S3 request failures to the storage sentinels.
// See https://docs.aws.amazon.com/AmazonS3/latest/API/ErrorResponses.html#ErrorCodeList
func toSentinelErrors(err error) error {
	if err == nil {
		return nil
	}
	var failure awserr.RequestFailure
	if !errors.As(err, &failure) {
		return err
	}

	switch code := failure.Code(); failure.StatusCode() {
	case http.StatusBadRequest:
		if code == "InvalidBucketName" {
			return status.ErrInvalidResource.Wrap(err)
		}
	case http.StatusUnauthorized:
		return status.ErrUnauthorized.Wrap(err)
	case http.StatusForbidden:
		return status.ErrForbidden.Wrap(err)
	case http.StatusNotFound:
		if missingObjectCodes[code] {
			return status.ErrNotExists.Wrap(err)
		}
		return status.ErrNotFound.Wrap(err)
	}
	return status.ErrStorageAPI.Wrap(err)
}
