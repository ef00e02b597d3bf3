package epd

import (
	"net/url"
	"strings"
)

const resourceSegment = "resource/"

// DerivePDFURL builds the PDF download URL of a record from its descriptor
// fields only. The source URI is cut after its first "resource/" segment and
// "processes/{id}/epd" is appended, followed by "?version=" when version is
// set.
//
// Example:
//
//	DerivePDFURL("https://data.x.org/resource/processes/ABC?x=1", "ID1", "2.0")
//	// https://data.x.org/resource/processes/ID1/epd?version=2.0
func DerivePDFURL(sourceURI, id, version string) string {
	base := sourceURI
	if i := strings.Index(sourceURI, resourceSegment); i >= 0 {
		base = sourceURI[:i]
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString(resourceSegment)
	b.WriteString("processes/")
	b.WriteString(id)
	b.WriteString("/epd")
	if version != "" {
		b.WriteString("?version=")
		b.WriteString(url.QueryEscape(version))
	}
	return b.String()
}

// CleanURI removes the spaces upstream occasionally embeds in record URIs.
func CleanURI(uri string) string {
	return strings.ReplaceAll(uri, " ", "")
}
