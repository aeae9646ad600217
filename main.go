package main

import "github.com/Alijeyrad/careflow_backend/cmd"

func main() {
	cmd.Execute()
}
