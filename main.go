package main

import "github.com/inovacc/gitvault/cmd"

func main() {
	cmd.Execute()
}
