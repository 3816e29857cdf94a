package main

import "github.com/entro314-labs/modelkill/cmd"

func main() {
	cmd.Execute()
}
