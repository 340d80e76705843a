package main

import "github.com/StinkyLord/sbom-assembler/cmd"

func main() {
	cmd.Execute()
}
