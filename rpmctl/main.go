// Rpmctl inspects and drives the RPM clocks of a platform.
package main

import "github.com/sarchlab/rpmclk/rpmctl/cmd"

func main() {
	cmd.Execute()
}
