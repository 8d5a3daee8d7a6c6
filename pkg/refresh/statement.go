package refresh

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrInvalidIdentifier  = errors.New("invalid identifier")
	ErrConcurrentSkipData = errors.New("concurrent refresh cannot be combined with skip data")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// ValidateIdentifier ensures schema/view names are safe SQL identifiers.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// BuildRefreshSQL builds the REFRESH MATERIALIZED VIEW statement a refresh
// record can carry as its message.
func BuildRefreshSQL(schemaName, viewName string, opts Options) (string, error) {
	if err := ValidateIdentifier(schemaName); err != nil {
		return "", err
	}
	if err := ValidateIdentifier(viewName); err != nil {
		return "", err
	}
	if opts.Concurrent && opts.SkipData {
		return "", ErrConcurrentSkipData
	}

	var b strings.Builder
	b.WriteString("REFRESH MATERIALIZED VIEW ")
	if opts.Concurrent {
		b.WriteString("CONCURRENTLY ")
	}
	b.WriteString(quoteIdent(schemaName))
	b.WriteByte('.')
	b.WriteString(quoteIdent(viewName))
	if opts.SkipData {
		b.WriteString(" WITH NO DATA")
	}
	return b.String(), nil
}
