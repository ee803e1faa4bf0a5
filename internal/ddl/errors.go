package ddl

import "fmt"

// SchemaMappingError reports remote metadata that cannot become a table.
type SchemaMappingError struct {
	Table  string
	Column string
	Reason string
}

func (e *SchemaMappingError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("schema mapping: table %q column %q: %s", e.Table, e.Column, e.Reason)
	}
	return fmt.Sprintf("schema mapping: table %q: %s", e.Table, e.Reason)
}

// TableAlreadyExistsError is returned when the destination table exists.
// Existing tables are never altered.
type TableAlreadyExistsError struct {
	Table string
}

func (e *TableAlreadyExistsError) Error() string {
	return fmt.Sprintf("table %q already exists", e.Table)
}

// DestinationUnsupportedFeatureError reports a capability the destination
// lacks, e.g. spatial types.
type DestinationUnsupportedFeatureError struct {
	Destination string
	Feature     string
	Err         error
}

func (e *DestinationUnsupportedFeatureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s does not support %s: %v", e.Destination, e.Feature, e.Err)
	}
	return fmt.Sprintf("%s does not support %s", e.Destination, e.Feature)
}

func (e *DestinationUnsupportedFeatureError) Unwrap() error { return e.Err }
