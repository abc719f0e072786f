package regionpulse

import (
	"errors"
	"fmt"
	"net/url"
)

// Region is a regional node to monitor, identified by a short code such as
// "EU" or "AS".
//
// Region is immutable after creation via [NewRegion].
type Region struct {
	code string
	url  string
}

// Code returns the region's short identifier, used as its key in snapshots
// and in activity log messages.
func (r Region) Code() string {
	return r.code
}

// URL returns the region's health check URL.
func (r Region) URL() string {
	return r.url
}

// NewRegion creates a [Region] with the given code and health check URL.
//
// Returns an error if the code is empty or the URL is not an absolute
// http or https URL.
//
// Example:
//
//	eu, err := regionpulse.NewRegion("EU", "http://eu.example.com:1456/healthz")
func NewRegion(code, rawURL string) (Region, error) {
	if code == "" {
		return Region{}, errors.New("region code cannot be empty")
	}
	if err := validateURL(rawURL); err != nil {
		return Region{}, fmt.Errorf("region %s: %w", code, err)
	}
	return Region{code: code, url: rawURL}, nil
}

// MustRegion is like [NewRegion] but panics on error. It is intended for
// package-level declarations and tests with literal arguments.
func MustRegion(code, rawURL string) Region {
	r, err := NewRegion(code, rawURL)
	if err != nil {
		panic(err)
	}
	return r
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("URL cannot be empty")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL: " + err.Error())
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("URL must have a scheme (http:// or https://)")
	}
	if parsed.Host == "" {
		return errors.New("URL must have a host")
	}
	return nil
}
