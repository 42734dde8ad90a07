package main

import "github.com/pthm-cable/flock/cmd"

func main() {
	cmd.Execute()
}
