// Binary labkit-packager builds the release manifest for distribution.
package main

import "github.com/advml-labs/labkit/cmd/labkit-packager/cmd"

func main() {
	cmd.Execute()
}
