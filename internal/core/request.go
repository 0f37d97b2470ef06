package core

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrInvalidOptions is returned for options that do not fit the analysis kind
var ErrInvalidOptions = errors.New("invalid analysis options")

// BuildRequest validates user input and produces a request descriptor.
// It has no side effects: equal inputs always yield equal descriptors.
func BuildRequest(kind AnalysisKind, content string, opts Options) (RequestDescriptor, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return RequestDescriptor{}, ErrEmptyContent
	}

	desc := RequestDescriptor{Kind: kind, Content: trimmed}

	switch kind {
	case KindURL:
		if opts.Email != nil {
			return RequestDescriptor{}, fmt.Errorf("%w: email options on a URL analysis", ErrInvalidOptions)
		}
		urlOpts := DefaultURLOptions()
		if opts.URL != nil {
			urlOpts = *opts.URL
		}
		if urlOpts.SimulationMode == "" {
			urlOpts.SimulationMode = SimulationDesktop
		}
		urlOpts.SimulationMode = SimulationMode(strings.ToUpper(string(urlOpts.SimulationMode)))
		if !urlOpts.SimulationMode.Valid() {
			return RequestDescriptor{}, fmt.Errorf("%w: simulation mode %q", ErrInvalidOptions, urlOpts.SimulationMode)
		}
		urlOpts.CountryCode = normalizeCountryCode(urlOpts.CountryCode)
		desc.Options = Options{URL: &urlOpts}
	case KindEmail:
		if opts.URL != nil {
			return RequestDescriptor{}, fmt.Errorf("%w: URL options on an email analysis", ErrInvalidOptions)
		}
		var emailOpts EmailOptions
		if opts.Email != nil {
			emailOpts = *opts.Email
		}
		desc.Options = Options{Email: &emailOpts}
	default:
		return RequestDescriptor{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	return desc, nil
}

// normalizeCountryCode trims and upper-cases a code; blank means absent
func normalizeCountryCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	// Casers carry state and are not shared between goroutines
	return cases.Upper(language.Und).String(code)
}

// LooksLikeURL is the cheap shape gate that decides whether typing a URL
// may trigger an automatic analysis. It is not a validator.
func LooksLikeURL(content string) bool {
	if strings.TrimSpace(content) == "" {
		return false
	}
	if len(content) < 8 || !strings.Contains(content, ".") {
		return false
	}
	return strings.HasPrefix(content, "http://") || strings.HasPrefix(content, "https://")
}
