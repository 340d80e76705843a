package model

import (
	"fmt"
	"net/url"

	"github.com/package-url/packageurl-go"
)

// ParsePURL parses s as a package URL.
func ParsePURL(s string) (packageurl.PackageURL, error) {
	if s == "" {
		return packageurl.PackageURL{}, fmt.Errorf("empty package url")
	}
	p, err := packageurl.FromString(s)
	if err != nil {
		return packageurl.PackageURL{}, fmt.Errorf("parsing package url %q: %w", s, err)
	}
	return p, nil
}

// PURLName returns the package's full name as the ecosystem spells it, with
// the namespace joined in (so "pkg:npm/%40scope/pkg@1" gives "@scope/pkg").
// It returns "" when s is not a valid purl.
func PURLName(s string) string {
	p, err := ParsePURL(s)
	if err != nil {
		return ""
	}
	name := unescape(p.Name)
	if p.Namespace == "" {
		return name
	}
	return unescape(p.Namespace) + "/" + name
}

func unescape(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}
