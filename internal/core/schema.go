package core

import (
	"fmt"
	"strings"
)

// SchemaPolicy decides which columns must be present before the pipeline runs.
type SchemaPolicy string

const (
	// SchemaStrict requires every dataset column.
	SchemaStrict SchemaPolicy = "strict"
	// SchemaLenient requires only the key and production/sales columns;
	// sections over the other columns are skipped when they are absent.
	SchemaLenient SchemaPolicy = "lenient"
)

// RequiredColumns are the eight columns of the PLN dataset.
var RequiredColumns = []string{
	ColYear,
	ColMonth,
	ColProduction,
	ColSold,
	ColEfficiency,
	ColLoss,
	ColLossPercent,
	ColCustomers,
}

var lenientColumns = []string{ColYear, ColMonth, ColProduction, ColSold}

// ParseSchemaPolicy maps a configuration value to a SchemaPolicy.
func ParseSchemaPolicy(s string) (SchemaPolicy, error) {
	switch SchemaPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", SchemaStrict:
		return SchemaStrict, nil
	case SchemaLenient:
		return SchemaLenient, nil
	}
	return "", fmt.Errorf("invalid schema policy %q: must be one of [strict lenient]", s)
}

// Required returns the columns the policy demands.
func (p SchemaPolicy) Required() []string {
	if p == SchemaLenient {
		return lenientColumns
	}
	return RequiredColumns
}

// ValidateSchema checks the table header against the policy. It returns nil
// or a *SchemaMismatchError naming every missing column.
func ValidateSchema(t *Table, p SchemaPolicy) error {
	var missing []string
	for _, c := range p.Required() {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &SchemaMismatchError{Missing: missing}
	}
	return nil
}
