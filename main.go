package main

import "github.com/AzielCF/az-audit/cmd"

func main() {
	cmd.Execute()
}
