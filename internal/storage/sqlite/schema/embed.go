package schema

import _ "embed"

// SQL creates every table the store needs. Statements are idempotent.
//
//go:embed schema.sql
var SQL string
