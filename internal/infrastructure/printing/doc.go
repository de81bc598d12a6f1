// Package printing draws paginated quotations and exports them as PDF.
//
// This package contains:
// - TemplateEngine, rendering pages with html/template and the embedded
//   templates/quotation.html
// - QuotationRenderer, producing HTML previews and PDF artifacts
// - PDFRenderer with ChromedpRenderer and WkhtmltopdfRenderer engines
// - ArtifactStorage with FileSystemStorage for exported files
//
// Example usage:
//
//	engine, err := NewTemplateEngine()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pdf := NewChromedpRenderer(ChromedpConfig{NoSandbox: true})
//	defer pdf.Close()
//	store, err := NewFileSystemStorage(FileSystemStorageConfig{BasePath: "/var/lib/quotation"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	renderer := NewQuotationRenderer(engine, pdf, store, QuotationRendererConfig{})
//	artifact, err := renderer.Export(ctx, sessionID, pages, q.Header())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Exported %s: %d bytes\n", artifact.FileName, artifact.Size)
package printing
