package main

import "github.com/MeKo-Tech/stmtgrid/cmd/stmtgrid/cmd"

func main() {
	cmd.Execute()
}
