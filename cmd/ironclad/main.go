package main

import "github.com/ironclad-authz/ironclad/cmd/ironclad/cmd"

func main() {
	cmd.Execute()
}
