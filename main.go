package main

import "github.com/Maeiro/MMMMM/cmd"

func main() {
	cmd.Execute()
}
