package main

import "github.com/encodeous/kdtm/cmd"

func main() {
	cmd.Execute()
}
