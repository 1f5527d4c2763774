// Package secrets reads the archive's anti-forgery token from AWS Secrets Manager.
//
// A TokenSource fetches the secret and optionally extracts a field from a JSON
// secret. Throttled calls are retried by CustomRetryer when it is installed with
// WithCustomRetryer. Secret values are never logged.
//
// Required IAM permissions: secretsmanager:GetSecretValue, plus kms:Decrypt when
// the secret is encrypted with a customer-managed key.
//
//	src, err := secrets.New(ctx, "isic/api-token",
//	    secrets.WithJSONKey("csrf"),
//	    secrets.WithCustomRetryer(secrets.NewRetryer(5, 0, 0)),
//	)
//	if err != nil {
//	    return err
//	}
//	w, err := doi.New(ctx, doi.WithTokenSource(src), doi.WithUploadClient(uploads))
package secrets
