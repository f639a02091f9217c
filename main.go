// Canvaspipe files painting images by dominant color and publishes
// web-ready variants of each. Run `canvaspipe --help` for the commands.
package main

import (
	"os"

	"github.com/BitPonyLLC/canvaspipe/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
