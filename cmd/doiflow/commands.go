package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"

	"github.com/ImageMarkup/isic/doi"
	"github.com/ImageMarkup/isic/doi/doitypes"
	"github.com/ImageMarkup/isic/internal/manifest"
	"github.com/ImageMarkup/isic/upload"
)

// fileAdder is the part of the workflow both create and attach use.
type fileAdder interface {
	AddFile(ctx context.Context, file upload.File) (uuid.UUID, error)
	FileCount() int
	SetFileDescription(index int, text string) error
	WaitUploads(ctx context.Context) error
	Files() []doitypes.SelectedFile
}

// runCreateCmd implements `doiflow create`.
func runCreateCmd(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("create", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		manifestPath string
		publish      bool
	)
	cmd.StringVar(&manifestPath, "manifest", "", "Path to the DOI manifest (REQUIRED)")
	cmd.BoolVar(&publish, "publish", false, "Publish the DOI after creating it")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if manifestPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -manifest is required")
		return 2
	}

	abs, err := filepath.Abs(manifestPath)
	if err != nil {
		return fail(stderr, err)
	}
	m, err := manifest.Load(osfs.New("/"), abs)
	if err != nil {
		return fail(stderr, err)
	}

	sess, err := newSession(ctx, stderr)
	if err != nil {
		return fail(stderr, err)
	}
	w, err := doi.New(ctx, sess.options(doi.WithDescription(m.Description))...)
	if err != nil {
		return fail(stderr, err)
	}

	files := make([]fileArg, len(m.Files))
	for i, f := range m.Files {
		files[i] = fileArg{path: f.Path, description: f.Description}
	}
	if err := addFiles(ctx, w, files, stderr); err != nil {
		return fail(stderr, err)
	}

	for _, ri := range m.RelatedIdentifiers {
		added, err := w.AddRelatedIdentifier(ri.RelationType)
		if err != nil {
			return fail(stderr, err)
		}
		if !added {
			continue
		}
		index := len(w.RelatedIdentifiers(ri.RelationType)) - 1
		if err := w.SetRelatedIdentifier(ri.RelationType, index, ri.IdentifierType, ri.Identifier); err != nil {
			return fail(stderr, err)
		}
	}

	res, err := w.Submit(ctx, m.CollectionID)
	if err != nil {
		return fail(stderr, err)
	}
	_, _ = fmt.Fprintf(stdout, "created DOI %s with %d supplemental file(s)\n%s\n", res.Slug, res.Files, res.RedirectURL)

	if publish {
		if err := w.Publish(ctx, res.Slug); err != nil {
			return fail(stderr, err)
		}
		_, _ = fmt.Fprintf(stdout, "publishing DOI %s\n", res.Slug)
	}
	return 0
}

// runAttachCmd implements `doiflow attach`, the variant without description or
// related identifiers.
func runAttachCmd(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("attach", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var collectionID int
	cmd.IntVar(&collectionID, "collection", 0, "Collection ID (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if collectionID <= 0 {
		_, _ = fmt.Fprintln(stderr, "Error: -collection must be a positive integer")
		return 2
	}
	if cmd.NArg() > doitypes.MaxSupplementalFiles {
		_, _ = fmt.Fprintf(stderr, "Error: at most %d files are allowed\n", doitypes.MaxSupplementalFiles)
		return 2
	}

	files := make([]fileArg, cmd.NArg())
	for i, arg := range cmd.Args() {
		path, desc, _ := strings.Cut(arg, "=")
		files[i] = fileArg{path: path, description: desc}
	}

	sess, err := newSession(ctx, stderr)
	if err != nil {
		return fail(stderr, err)
	}
	u, err := doi.NewUploader(ctx, sess.options()...)
	if err != nil {
		return fail(stderr, err)
	}
	if err := addFiles(ctx, u, files, stderr); err != nil {
		return fail(stderr, err)
	}

	res, err := u.Submit(ctx, collectionID)
	if err != nil {
		return fail(stderr, err)
	}
	_, _ = fmt.Fprintf(stdout, "attached %d supplemental file(s)\n%s\n", res.Files, res.RedirectURL)
	return 0
}

// runDescribeCmd implements `doiflow describe`.
func runDescribeCmd(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("describe", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var slug, description string
	cmd.StringVar(&slug, "slug", "", "DOI slug (REQUIRED)")
	cmd.StringVar(&description, "description", "", "New description")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if slug == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -slug is required")
		return 2
	}

	u, code := uploaderFromEnv(ctx, stderr)
	if u == nil {
		return code
	}
	if err := u.UpdateDescription(ctx, slug, description); err != nil {
		return fail(stderr, err)
	}
	_, _ = fmt.Fprintf(stdout, "updated description of DOI %s\n", slug)
	return 0
}

// runPublishCmd implements `doiflow publish`.
func runPublishCmd(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("publish", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var slug string
	cmd.StringVar(&slug, "slug", "", "DOI slug (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if slug == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -slug is required")
		return 2
	}

	u, code := uploaderFromEnv(ctx, stderr)
	if u == nil {
		return code
	}
	if err := u.Publish(ctx, slug); err != nil {
		return fail(stderr, err)
	}
	_, _ = fmt.Fprintf(stdout, "publishing DOI %s\n", slug)
	return 0
}

// runSizeCmd implements `doiflow size`.
func runSizeCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("size", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var decimals int
	cmd.IntVar(&decimals, "decimals", 2, "Decimal places")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: doiflow size [-decimals N] BYTES")
		return 2
	}
	n, err := strconv.ParseInt(cmd.Arg(0), 10, 64)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %q is not a byte count\n", cmd.Arg(0))
		return 2
	}

	_, _ = fmt.Fprintln(stdout, doi.FormatBytesPrecision(n, decimals))
	return 0
}

// runRelationsCmd implements `doiflow relations`.
func runRelationsCmd(stdout io.Writer) int {
	for _, rt := range doi.RelationTypes() {
		unique := ""
		if rt.Unique {
			unique = " (one entry)"
		}
		_, _ = fmt.Fprintf(stdout, "%s%s\n  %s\n  %s\n", rt.Type, unique, rt.Title, rt.HelpURL)
	}
	return 0
}

type fileArg struct {
	path        string
	description string
}

// addFiles starts every upload, then waits for all of them. Failed uploads are
// reported per file.
func addFiles(ctx context.Context, w fileAdder, files []fileArg, stderr io.Writer) error {
	for _, f := range files {
		lf, err := upload.OpenFile(nil, f.path)
		if err != nil {
			return err
		}
		if _, err := w.AddFile(ctx, lf); err != nil {
			return err
		}
		if f.description != "" {
			if err := w.SetFileDescription(w.FileCount()-1, f.description); err != nil {
				return err
			}
		}
	}

	if err := w.WaitUploads(ctx); err != nil {
		for _, f := range w.Files() {
			if f.Err != nil {
				_, _ = fmt.Fprintf(stderr, "upload of %s (%s) failed: %v\n", f.Name, doi.FormatBytes(f.Size), f.Err)
			}
		}
		return errors.New("one or more uploads failed")
	}
	return nil
}

func uploaderFromEnv(ctx context.Context, stderr io.Writer) (*doi.Uploader, int) {
	sess, err := newSession(ctx, stderr)
	if err != nil {
		return nil, fail(stderr, err)
	}
	u, err := doi.NewUploader(ctx, sess.options()...)
	if err != nil {
		return nil, fail(stderr, err)
	}
	return u, 0
}

func fail(stderr io.Writer, err error) int {
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}
