// Package cultures validates and normalizes culture names against BCP 47.
package cultures

import (
	"golang.org/x/text/language"

	"github.com/lsurma/data-manager/internal/domain"
)

// defaultCultures is served when a data set declares no cultures of its own.
var defaultCultures = []string{"en", "en-GB", "de", "fr", "es", "it", "pl"}

// Provider resolves the culture list for data sets.
type Provider struct {
	defaults []string
}

// NewProvider creates a provider. An empty defaults list falls back to the
// built-in set.
func NewProvider(defaults []string) *Provider {
	if len(defaults) == 0 {
		defaults = defaultCultures
	}
	return &Provider{defaults: defaults}
}

// For returns the cultures configured on the data set, else the defaults.
func (p *Provider) For(ds domain.DataSet) []string {
	return ds.CulturesOrDefault(p.defaults)
}

// Defaults returns the fallback culture list.
func (p *Provider) Defaults() []string {
	return p.defaults
}

// Normalize parses a culture name and returns its canonical BCP 47 form
// (e.g. "EN_gb" becomes "en-GB").
func Normalize(culture string) (string, error) {
	tag, err := language.Parse(culture)
	if err != nil {
		return "", domain.NewValidationError("cultureName", "is not a valid BCP 47 language tag")
	}
	return tag.String(), nil
}

// Validate reports whether the culture name parses as a BCP 47 tag.
func Validate(culture string) error {
	_, err := Normalize(culture)
	return err
}
