package testdb

import "os"

// DatabaseURLEnv names the variable holding the PostgreSQL test database URL.
const DatabaseURLEnv = "CARO_TEST_DATABASE_URL"

// GetTestDatabaseURL returns the PostgreSQL URL for tests, or "" when none
// is configured.
func GetTestDatabaseURL() string {
	return os.Getenv(DatabaseURLEnv)
}

// ShouldSkipDatabaseTest reports whether PostgreSQL tests should be skipped.
func ShouldSkipDatabaseTest() bool {
	return GetTestDatabaseURL() == ""
}
