// admintool runs maintenance jobs against the audit database.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/admintool migrate
//	go run ./cmd/admintool import-schedules --file schedules.xlsx
//	go run ./cmd/admintool tree --group <group id> [--search cash]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
