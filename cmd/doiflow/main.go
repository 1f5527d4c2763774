// Command doiflow creates and publishes ISIC collection DOIs from the command line.
//
// Configuration is read from the environment, optionally seeded from a .env file
// (DOIFLOW_ENV_FILE, default ./.env). See printUsage for the variables.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing. Exit codes: 0 ok, 1 failure, 2 usage.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch args[1] {
	case "create":
		return runCreateCmd(ctx, args[2:], stdout, stderr)
	case "attach":
		return runAttachCmd(ctx, args[2:], stdout, stderr)
	case "describe":
		return runDescribeCmd(ctx, args[2:], stdout, stderr)
	case "publish":
		return runPublishCmd(ctx, args[2:], stdout, stderr)
	case "size":
		return runSizeCmd(args[2:], stdout, stderr)
	case "relations":
		return runRelationsCmd(stdout)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprint(w, `Usage: doiflow <command> [flags]

Commands:
  create    -manifest doi.yaml [-publish]    Upload files and create a draft DOI
  attach    -collection N file[=desc]...     Attach supplemental files to a collection
  describe  -slug S -description D           Replace the description of a draft DOI
  publish   -slug S                          Publish a draft DOI
  size      [-decimals N] BYTES              Format a byte count
  relations                                  List supported relation types

Environment:
  DOIFLOW_BASE_URL          API root (default https://api.isic-archive.com/api/v2/)
  DOIFLOW_TOKEN             anti-forgery token
  DOIFLOW_TOKEN_SECRET      Secrets Manager secret holding the token
  DOIFLOW_TOKEN_SECRET_KEY  JSON field of the secret
  DOIFLOW_TOKEN_SECRET_RETRIES  attempts for throttled secret reads (default 10)
  DOIFLOW_SECRETS_ENDPOINT  custom Secrets Manager endpoint
  DOIFLOW_CSRF_PAGE         page to scrape the token from
  DOIFLOW_TOKEN_HEADER      header the token is sent in (default X-CSRFToken)
  DOIFLOW_UPLOAD_BACKEND    fieldfile (default), s3 or minio
  DOIFLOW_BUCKET            bucket for s3 and minio
  DOIFLOW_PREFIX            object key prefix for s3 and minio
  DOIFLOW_REGION            AWS region
  DOIFLOW_S3_ENDPOINT       custom S3 endpoint
  DOIFLOW_S3_PATH_STYLE     force path-style S3 URLs
  DOIFLOW_MINIO_ENDPOINT    MinIO host:port
  DOIFLOW_MINIO_ACCESS_KEY  MinIO access key
  DOIFLOW_MINIO_SECRET_KEY  MinIO secret key
  DOIFLOW_MINIO_SECURE      use TLS for MinIO
  DOIFLOW_TIMEOUT           HTTP timeout, e.g. 30s
  DOIFLOW_LOG_LEVEL         debug, info, warn (default) or error
`)
}
