// Binary labkit-verifier inspects a provisioned lab environment and reports
// its health.
package main

import "github.com/advml-labs/labkit/cmd/labkit-verifier/cmd"

func main() {
	cmd.Execute()
}
