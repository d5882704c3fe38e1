package main

import "marketplace-core/cmd/marketplace-cli/cmd"

func main() {
	cmd.Execute()
}
