package main

import "DHAdmin/cmd"

func main() {
	cmd.Execute()
}
