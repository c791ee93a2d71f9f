// Command owner-enricher finds the owners of businesses listed in a CSV file.
//
// Usage:
//
//	owner-enricher run --input leads.csv --output enriched.csv
//	owner-enricher serve --port 8080
//
// Every flag can also be set through its environment variable (see
// --help); flags win over the environment.
package main

import "os"

func main() {
	os.Exit(execute())
}
