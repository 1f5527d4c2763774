// Package s3 uploads supplemental files straight to an S3 bucket with the AWS SDK
// v2. Small files are sent with a single PutObject; larger ones use a concurrent
// multipart upload that is aborted if any part fails.
//
// Each file is stored under {prefix}/{field}/{uuid}/{name}, so two files with the
// same name never collide. The returned handle carries the object key.
//
// Example usage:
//
//	client, err := s3.New(ctx,
//	    s3.WithBucket("isic-supplemental"),
//	    s3.WithRegion("us-east-1"),
//	    s3.WithPrefix("incoming"),
//	)
//	if err != nil {
//	    return err
//	}
//
//	w, err := doi.New(ctx, doi.WithUploadClient(client), doi.WithToken(token))
package s3
