package main

import "github.com/jmehdipour/reminder-gateway/cmd"

func main() {
	cmd.Execute()
}
