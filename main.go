package main

import "github.com/JackBungart/perceptive-crm/cmd"

func main() {
	cmd.Execute()
}
