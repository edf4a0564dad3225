package main

import "github.com/fakeyudi/chatwatch/cmd"

func main() {
	cmd.Execute()
}
