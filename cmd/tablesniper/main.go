package main

import "github.com/example/table-sniper/cmd"

func main() {
	cmd.Execute()
}
