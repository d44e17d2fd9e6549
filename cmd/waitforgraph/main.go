package main

import "github.com/dbsmedya/waitforgraph/cmd/waitforgraph/cmd"

func main() {
	cmd.Execute()
}
