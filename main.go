package main

import "github.com/KaramelBytes/predobs-cli/cmd"

func main() {
	cmd.Execute()
}
