// Package fetch downloads source documents and classifies their content
// type. Heavy-duty PDF text extraction is an external concern; this package
// returns the raw bytes for PDF sources and plain text for HTML and text
// sources.
package fetch
