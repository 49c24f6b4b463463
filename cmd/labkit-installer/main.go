// Binary labkit-installer provisions the machine-learning lab environment on
// this machine.
package main

import "github.com/advml-labs/labkit/cmd/labkit-installer/cmd"

func main() {
	cmd.Execute()
}
