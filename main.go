package main

import "github.com/stoneage-light/stoneage/cmd"

func main() {
	cmd.Execute()
}
