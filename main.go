package main

import "github.com/josephlewis42/tinyos/cmd"

func main() {
	cmd.Execute()
}
