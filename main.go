package main

import "github.com/frahmantamala/acuhire/cmd"

func main() {
	cmd.Execute()
}
