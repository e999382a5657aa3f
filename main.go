package main

import "github.com/curaious/chrono/cmd"

func main() {
	cmd.Execute()
}
