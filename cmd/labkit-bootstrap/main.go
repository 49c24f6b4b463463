// Binary labkit-bootstrap keeps the installer current and hands over to it.
package main

import "github.com/advml-labs/labkit/cmd/labkit-bootstrap/cmd"

func main() {
	cmd.Execute()
}
