package main

import "github.com/juststeveking/stagewatch/cmd"

func main() {
	cmd.Execute()
}
