// Package doi drives the creation of a DOI for an image collection: supplemental
// files are uploaded directly to storage while the user fills in the form, and the
// resulting upload handles are submitted together with the description and the
// related identifiers.
//
// Two variants share one design. Uploader handles the file list and submits it for
// a collection. Workflow embeds Uploader and adds a free-text description and the
// three related-identifier lists.
//
// Example usage:
//
//	w, err := doi.New(ctx,
//	    doi.WithBaseURL("https://api.isic-archive.com/api/v2/"),
//	    doi.WithUploadClient(fieldfile.New(...)),
//	    doi.WithToken(csrfToken),
//	)
//	if err != nil {
//	    return err
//	}
//
//	f, _ := upload.OpenFile(nil, "/data/readme.pdf")
//	if _, err := w.AddFile(ctx, f); err != nil {
//	    return err
//	}
//	_ = w.SetFileDescription(0, "Dataset readme")
//	w.SetDescription("Dermoscopic images of ...")
//
//	if err := w.WaitUploads(ctx); err != nil {
//	    return err
//	}
//	result, err := w.Submit(ctx, 42)
//	if err != nil {
//	    fmt.Println(w.ErrorMessage())
//	    return err
//	}
//	fmt.Println("created", result.RedirectURL)
package doi
