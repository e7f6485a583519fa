package main

import "github.com/user/xharvest/cmd"

func main() {
	cmd.Execute()
}
