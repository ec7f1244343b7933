// Command stagegate resolves which stages of the business-planning pipeline
// are locked, available or completed.
package main

import "stagegate/internal/cli"

func main() {
	cli.Execute()
}
