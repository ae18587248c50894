// Package all registers every storage backend. Commands blank-import it so a
// config or flag can select any supported kind at runtime.
package all

import (
	_ "listingcheck/internal/storage/mssql"
	_ "listingcheck/internal/storage/postgres"
	_ "listingcheck/internal/storage/sqlite"
)
